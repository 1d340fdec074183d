package commands

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"lastmodified/pkg/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC history service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := LM.Settings.Server.Addr
		if LM.History == nil {
			LM.Logger.Warn("no history source, every request will fail")
		}

		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}

		grpcServer := server.New(LM)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			LM.Logger.Info("grpc server listening", "addr", lis.Addr().String())
			errCh <- grpcServer.Serve(lis)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		LM.Logger.Info("shutting down server")
		grpcServer.GracefulStop()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr)")
	mustBind("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}
