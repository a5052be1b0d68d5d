package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/meandra/internal/domain"
)

func openMemStore(t *testing.T) *Badger {
	t.Helper()
	store, err := Open(domain.CheckpointConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(runID, nodeID string, state domain.NodeRunState) domain.CheckpointRecord {
	return domain.CheckpointRecord{
		RunID:     runID,
		NodeID:    nodeID,
		State:     state,
		Timestamp: time.Now().UTC(),
	}
}

func TestBadgerAppendLoad(t *testing.T) {
	store := openMemStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, record("run-1", "a", domain.NodeStateSucceeded)))
	require.NoError(t, store.Append(ctx, record("run-1", "b", domain.NodeStateFailed)))
	require.NoError(t, store.Append(ctx, record("run-1", "b", domain.NodeStateSucceeded)))

	log, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, log.Records, 3)
	assert.Empty(t, log.Dropped)

	// Sequence numbers are dense and ordered.
	for i, rec := range log.Records {
		assert.Equal(t, uint64(i+1), rec.Seq)
	}
	assert.Equal(t, "a", log.Records[0].NodeID)
	assert.Equal(t, "b", log.Records[1].NodeID)
	assert.Equal(t, domain.NodeStateFailed, log.Records[1].State)
	assert.Equal(t, domain.NodeStateSucceeded, log.Records[2].State)

	last := log.LastStates()
	assert.Equal(t, domain.NodeStateSucceeded, last["b"].State)
}

func TestBadgerRunIsolation(t *testing.T) {
	store := openMemStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, record("run-1", "a", domain.NodeStateSucceeded)))
	require.NoError(t, store.Append(ctx, record("run-2", "a", domain.NodeStateFailed)))
	require.NoError(t, store.Append(ctx, record("run-10", "a", domain.NodeStateSucceeded)))

	log, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, log.Records, 1)
	assert.Equal(t, domain.NodeStateSucceeded, log.Records[0].State)
	// Sequences count per run.
	assert.Equal(t, uint64(1), log.Records[0].Seq)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-10", "run-2"}, runs)
}

func TestBadgerLoadUnknownRun(t *testing.T) {
	store := openMemStore(t)

	log, err := store.Load(context.Background(), "never-ran")
	require.NoError(t, err)
	assert.Empty(t, log.Records)
	assert.Empty(t, log.Dropped)
}

func TestBadgerDiscardsCorruptRecords(t *testing.T) {
	store := openMemStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, record("run-1", "a", domain.NodeStateSucceeded)))
	require.NoError(t, store.Append(ctx, record("run-1", "b", domain.NodeStateSucceeded)))

	// Damage the second record in place, then add garbage under a later key.
	require.NoError(t, store.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(domain.CheckpointRecordKey("run-1", 2)), []byte(`{"sum":"0","record":`)); err != nil {
			return err
		}
		return txn.Set([]byte(domain.CheckpointRecordKey("run-1", 3)), []byte("not even json"))
	}))

	log, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, log.Records, 1)
	assert.Equal(t, "a", log.Records[0].NodeID)

	require.Len(t, log.Dropped, 2)
	assert.Equal(t, uint64(2), log.Dropped[0].Seq)
	assert.Equal(t, uint64(3), log.Dropped[1].Seq)

	// Appending after a corruption keeps working; note seq 3 was never
	// handed out by the store, so the counter continues from 2.
	require.NoError(t, store.Append(ctx, record("run-1", "c", domain.NodeStateSucceeded)))
	log, err = store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, log.Records, 2)
	assert.Equal(t, "c", log.Records[1].NodeID)
}

func TestBadgerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := domain.CheckpointConfig{Dir: dir}
	ctx := context.Background()

	store, err := Open(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, record("run-1", "a", domain.NodeStateSucceeded)))
	require.NoError(t, store.Append(ctx, record("run-1", "b", domain.NodeStateFailed)))
	require.NoError(t, store.Close())

	reopened, err := Open(cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	log, err := reopened.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, log.Records, 2)
	assert.Equal(t, "b", log.Records[1].NodeID)

	// The sequence counter also survives.
	require.NoError(t, reopened.Append(ctx, record("run-1", "b", domain.NodeStateSucceeded)))
	log, err = reopened.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), log.Records[2].Seq)
}

func TestBadgerClosedStore(t *testing.T) {
	store := openMemStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "close is idempotent")

	err := store.Append(context.Background(), record("run-1", "a", domain.NodeStateSucceeded))
	assert.ErrorIs(t, err, domain.ErrStoreClosed)

	_, err = store.Load(context.Background(), "run-1")
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
}

func TestBadgerRejectsAnonymousRecords(t *testing.T) {
	store := openMemStore(t)

	err := store.Append(context.Background(), domain.CheckpointRecord{RunID: "run-1"})
	require.Error(t, err)

	err = store.Append(context.Background(), domain.CheckpointRecord{NodeID: "a"})
	require.Error(t, err)
}

func TestMemoryStoreParity(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, record("run-1", "a", domain.NodeStateSucceeded)))
	require.NoError(t, store.Append(ctx, record("run-1", "b", domain.NodeStateFailed)))
	require.NoError(t, store.Append(ctx, record("run-2", "x", domain.NodeStateSucceeded)))

	log, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, log.Records, 2)
	assert.Equal(t, uint64(2), log.Records[1].Seq)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, runs)

	require.NoError(t, store.Close())
	err = store.Append(ctx, record("run-1", "c", domain.NodeStateSucceeded))
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
}
