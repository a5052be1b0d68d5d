package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/eleven-am/meandra/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T, entries ...domain.CatalogEntry) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(domain.CatalogConfig{BaseDir: dir, Entries: entries}, nil)
	require.NoError(t, err)
	return fs, dir
}

func TestNewFS_Rejections(t *testing.T) {
	t.Run("unknown default format", func(t *testing.T) {
		_, err := NewFS(domain.CatalogConfig{DefaultFormat: "parquet"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown format "parquet"`)
	})

	t.Run("unknown entry format", func(t *testing.T) {
		_, err := NewFS(domain.CatalogConfig{Entries: []domain.CatalogEntry{
			{Key: "x", Location: "x.bin", Format: "avro"},
		}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown format "avro"`)
	})

	t.Run("duplicate entry", func(t *testing.T) {
		_, err := NewFS(domain.CatalogConfig{Entries: []domain.CatalogEntry{
			{Key: "x", Location: "a.json"},
			{Key: "x", Location: "b.json"},
		}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate entry")
	})

	t.Run("invalid entry", func(t *testing.T) {
		_, err := NewFS(domain.CatalogConfig{Entries: []domain.CatalogEntry{
			{Key: "x"},
		}}, nil)
		require.Error(t, err)
	})
}

func TestRunView_SaveThenLoad(t *testing.T) {
	fs, dir := newTestFS(t,
		domain.CatalogEntry{Key: "stats", Location: "{run_id}/stats.json", Format: "json"},
		domain.CatalogEntry{Key: "notes", Location: "{run_id}/notes.txt", Format: "text"},
		domain.CatalogEntry{Key: "blob", Location: "{run_id}/raw.bin", Format: "binary"},
		domain.CatalogEntry{Key: "cfg", Location: "{run_id}/cfg.yaml", Format: "yaml"},
	)
	view := fs.ForRun(domain.NewRunContext("run-7"))
	ctx := context.Background()

	require.NoError(t, view.Save(ctx, "stats", map[string]interface{}{"rows": 42}))
	require.NoError(t, view.Save(ctx, "notes", "hello"))
	require.NoError(t, view.Save(ctx, "blob", []byte{0x01, 0x02}))
	require.NoError(t, view.Save(ctx, "cfg", map[string]interface{}{"depth": 3}))

	stats, err := view.Load(ctx, "stats")
	require.NoError(t, err)
	assert.Equal(t, float64(42), stats.(map[string]interface{})["rows"])

	notes, err := view.Load(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "hello", notes)

	blob, err := view.Load(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, blob)

	cfg, err := view.Load(ctx, "cfg")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.(map[string]interface{})["depth"])

	// Files land under the run-scoped location inside the base dir.
	_, err = os.Stat(filepath.Join(dir, "run-7", "stats.json"))
	assert.NoError(t, err)
	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "run-7"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestRunView_ReloadAcrossInstances(t *testing.T) {
	entry := domain.CatalogEntry{Key: "model", Location: "{run_id}/model.json"}
	fs, dir := newTestFS(t, entry)
	rc := domain.NewRunContext("run-1")

	require.NoError(t, fs.ForRun(rc).Save(context.Background(), "model", map[string]interface{}{"w": []interface{}{1.5}}))

	// A fresh catalog over the same base dir serves the same bytes.
	again, err := NewFS(domain.CatalogConfig{BaseDir: dir, Entries: []domain.CatalogEntry{entry}}, nil)
	require.NoError(t, err)
	value, err := again.ForRun(rc).Load(context.Background(), "model")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.5}, value.(map[string]interface{})["w"])
}

func TestRunView_HasTracksFiles(t *testing.T) {
	fs, _ := newTestFS(t, domain.CatalogEntry{Key: "features", Location: "{run_id}/f.json"})
	view := fs.ForRun(domain.NewRunContext("run-1"))

	assert.True(t, view.IsPersistent("features"))
	assert.False(t, view.Has("features"), "entry without a file should not be servable")

	require.NoError(t, view.Save(context.Background(), "features", []interface{}{1, 2}))
	assert.True(t, view.Has("features"))

	assert.False(t, view.Has("unknown"))
	assert.False(t, view.IsPersistent("unknown"))
}

func TestRunView_LoadMissing(t *testing.T) {
	fs, _ := newTestFS(t, domain.CatalogEntry{Key: "features", Location: "f.json"})
	view := fs.ForRun(domain.NewRunContext("run-1"))

	_, err := view.Load(context.Background(), "features")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	_, err = view.Load(context.Background(), "no-entry")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestRunView_SaveWithoutEntry(t *testing.T) {
	fs, _ := newTestFS(t)
	view := fs.ForRun(domain.NewRunContext("run-1"))

	err := view.Save(context.Background(), "scratch", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no catalog entry")
}

func TestRunView_RunIsolation(t *testing.T) {
	fs, _ := newTestFS(t, domain.CatalogEntry{Key: "out", Location: "{run_id}/out.json"})
	ctx := context.Background()

	viewA := fs.ForRun(domain.NewRunContext("run-a"))
	viewB := fs.ForRun(domain.NewRunContext("run-b"))

	require.NoError(t, viewA.Save(ctx, "out", "from-a"))

	assert.True(t, viewA.Has("out"))
	assert.False(t, viewB.Has("out"), "runs must not share templated locations")

	locA, ok := viewA.Location("out")
	require.True(t, ok)
	locB, ok := viewB.Location("out")
	require.True(t, ok)
	assert.NotEqual(t, locA, locB)
}

func TestRunView_BindOverridesLocation(t *testing.T) {
	fs, dir := newTestFS(t, domain.CatalogEntry{Key: "model", Location: "{run_id}/model.json"})
	ctx := context.Background()

	// An earlier run persisted the value at its own location.
	old := fs.ForRun(domain.NewRunContext("run-old"))
	require.NoError(t, old.Save(ctx, "model", map[string]interface{}{"v": float64(1)}))
	oldLoc, ok := old.Location("model")
	require.True(t, ok)

	// A new run binds the key back to the old location, as resume does.
	view := fs.ForRun(domain.NewRunContext("run-new"))
	assert.False(t, view.Has("model"))
	view.Bind("model", oldLoc)
	assert.True(t, view.Has("model"))

	value, err := view.Load(ctx, "model")
	require.NoError(t, err)
	assert.Equal(t, float64(1), value.(map[string]interface{})["v"])

	loc, ok := view.Location("model")
	require.True(t, ok)
	assert.Equal(t, oldLoc, loc)
	assert.Equal(t, filepath.Join(dir, "run-old", "model.json"), fs.abs(loc))
}

func TestRunView_UnresolvableTemplate(t *testing.T) {
	fs, _ := newTestFS(t, domain.CatalogEntry{Key: "x", Location: "{missing}/x.json"})
	view := fs.ForRun(domain.NewRunContext("run-1"))

	_, ok := view.Location("x")
	assert.False(t, ok)
	assert.False(t, view.Has("x"))

	_, err := view.Load(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestMemoryCatalog(t *testing.T) {
	mem := NewMemory("model")
	ctx := context.Background()
	view := mem.ForRun(domain.NewRunContext("run-1"))

	assert.True(t, view.IsPersistent("model"))
	assert.False(t, view.IsPersistent("scratch"))
	assert.False(t, view.Has("model"))

	mem.Seed("features", []int{1, 2, 3})
	assert.True(t, view.Has("features"))

	value, err := view.Load(ctx, "features")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, value)

	require.NoError(t, view.Save(ctx, "model", "weights"))
	loc, ok := view.Location("model")
	require.True(t, ok)
	assert.Equal(t, "mem://model", loc)

	_, err = view.Load(ctx, "absent")
	assert.True(t, domain.IsNotFound(err))
}
