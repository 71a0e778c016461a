package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/asset"
)

var t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(t *testing.T, s *Store, runID string, keys ...asset.Key) {
	t.Helper()
	require.NoError(t, s.CreateRun(context.Background(), Run{
		RunID:          runID,
		AssetSelection: keys,
		CreatedAt:      t0,
	}))
}

func materialize(t *testing.T, s *Store, runID string, key asset.Key, partition, dataVersion string) int64 {
	t.Helper()
	id, err := s.RecordEvent(context.Background(), Event{
		RunID:        runID,
		Type:         EventMaterialization,
		AssetKey:     key,
		PartitionKey: partition,
		DataVersion:  dataVersion,
		Timestamp:    t0,
	})
	require.NoError(t, err)
	return id
}
