package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"lastmodified/pkg/config"
	"lastmodified/pkg/gitrepo"
	"lastmodified/pkg/history"
	"lastmodified/pkg/meta"
	"lastmodified/pkg/refs"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/storage/cache"
	"lastmodified/pkg/storage/disk"
	"lastmodified/pkg/storage/s3"
	"lastmodified/pkg/types"
)

// ErrNoHistory means neither a repository nor a mirror is available.
var ErrNoHistory = errors.New("no history source available")

// App is the dependency container shared by the CLI commands and the server.
type App struct {
	Settings *config.Settings
	Logger   *slog.Logger

	// git mode: the discovered repository
	Repo *gitrepo.Repository

	// disk / s3 mode: the mirror and the refs next to it
	Store storage.Store
	Refs  *refs.Manager

	History history.Accessor // nil when no history source was found
	Policy  history.Policy
	Ledger  *meta.Repository // nil unless ledger.enabled

	root    string
	closers []func() error
}

// NewApp assembles the container from settings. In git mode a missing
// repository is not an error: History stays nil and callers fall back.
func NewApp(ctx context.Context, s *config.Settings) (*App, error) {
	policy, err := history.ParsePolicy(s.Resolver.Policy)
	if err != nil {
		return nil, err
	}

	a := &App{
		Settings: s,
		Logger:   slog.Default(),
		Policy:   policy,
	}

	// 1. History source
	switch s.Storage.Type {
	case "git", "":
		repo, err := gitrepo.Discover(s.Repo.Dir())
		switch {
		case errors.Is(err, gitrepo.ErrStoreDiscoveryFailed) && s.Repo.Path == "":
			// annotate may still find one next to the sources
			a.Logger.Debug("no git repository around the working directory")
		case errors.Is(err, gitrepo.ErrStoreDiscoveryFailed):
			a.Logger.Warn("no git repository found, dates will come from the filesystem", "path", s.Repo.Path)
		case err != nil:
			return nil, err
		default:
			a.Repo = repo
			a.History = repo
			a.root = repo.Root()
			a.closers = append(a.closers, repo.Close)
		}

	default:
		store, err := a.OpenStore(ctx)
		if err != nil {
			return nil, err
		}
		a.Store = store
		a.Refs = refs.NewManager(refsDir(s.Storage.Path), store)
		a.History = history.NewStoreAccessor(store)
		if root, err := filepath.Abs(s.Repo.Dir()); err == nil {
			a.root = root
		}
	}

	// 2. Ledger
	if s.Ledger.Enabled {
		db, err := meta.NewDB(ctx, meta.Config{Driver: s.Ledger.Driver, DSN: s.Ledger.DSN})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
		a.Ledger = meta.NewRepository(db)
		a.closers = append(a.closers, db.Close)
	}

	return a, nil
}

// AdoptSourceRepository switches git mode to the repository enclosing dir,
// usually the DocFX source directory. It does nothing when repo.path is
// configured, in mirror mode, or when dir is not inside a repository, and
// reports whether a repository is in use afterwards.
func (a *App) AdoptSourceRepository(dir string) bool {
	switch a.Settings.Storage.Type {
	case "git", "":
	default:
		return a.History != nil
	}
	if a.Settings.Repo.Path != "" {
		return a.Repo != nil
	}

	repo, err := gitrepo.Discover(dir)
	if err != nil {
		if a.Repo == nil {
			a.Logger.Warn("no git repository found, dates will come from the filesystem", "path", dir)
		}
		return a.Repo != nil
	}
	if a.Repo != nil && a.Repo.Root() == repo.Root() {
		repo.Close()
		return true
	}

	a.Logger.Debug("using the repository enclosing the sources", "root", repo.Root())
	a.Repo = repo
	a.History = repo
	a.root = repo.Root()
	a.closers = append(a.closers, repo.Close)
	return true
}

// OpenStore builds the configured object store, wrapped in the Redis cache
// when cache.redis_url is set. The App closes it.
func (a *App) OpenStore(ctx context.Context) (storage.Store, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	store, err := initStore(ctx, a.Settings)
	if err != nil {
		return nil, err
	}

	if url := a.Settings.Cache.RedisURL; url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{RedisURL: url, TTL: a.Settings.Cache.TTL})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cached.Close)
		store = cached
	}
	return store, nil
}

func initStore(ctx context.Context, s *config.Settings) (storage.Store, error) {
	switch s.Storage.Type {
	case "disk":
		if s.Storage.Path == "" {
			return nil, fmt.Errorf("storage.path is required for disk storage")
		}
		return disk.NewAdapter(s.Storage.Path)

	case "s3":
		if s.Storage.S3.Bucket == "" {
			return nil, fmt.Errorf("storage.s3.bucket is required")
		}
		return s3.NewAdapter(ctx, s3.Config{
			Endpoint:        s.Storage.S3.Endpoint,
			Region:          s.Storage.S3.Region,
			Bucket:          s.Storage.S3.Bucket,
			Prefix:          s.Storage.S3.Prefix,
			AccessKeyID:     s.Storage.S3.AccessKey,
			SecretAccessKey: s.Storage.S3.SecretKey,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type for object store: %q", s.Storage.Type)
	}
}

// refsDir is the git-style directory holding HEAD next to the objects folder.
func refsDir(objectsPath string) string {
	return filepath.Dir(filepath.Clean(objectsPath))
}

// Root is the working tree root source paths are relative to, "" if unknown.
func (a *App) Root() string { return a.root }

// ResolveRevision turns rev ("" means HEAD) into a commit id.
func (a *App) ResolveRevision(ctx context.Context, rev string) (types.Hash, error) {
	switch {
	case a.Repo != nil:
		return a.Repo.ResolveRevision(rev)
	case a.Refs != nil:
		return a.Refs.Resolve(ctx, rev)
	default:
		return "", ErrNoHistory
	}
}

// Close releases every handle in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
