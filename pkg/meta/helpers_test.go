package meta

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"lastmodified/pkg/types"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockHash builds a valid commit id from a label.
func mockHash(input string) types.Hash {
	sum := sha1.Sum([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// setupTestRepo builds an isolated in-memory ledger.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate())
	t.Cleanup(func() { _ = metaDB.Close() })

	return NewRepository(metaDB)
}

func mustStartRun(t *testing.T, repo *Repository, head types.Hash) *Run {
	t.Helper()
	run, err := repo.StartRun(context.Background(), head, "/agent/docs")
	require.NoError(t, err)
	return run
}

func mustRecord(t *testing.T, repo *Repository, runID uint, rec AnnotationRecord, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.RecordAnnotation(context.Background(), runID, rec), msgAndArgs...)
}

var day = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
