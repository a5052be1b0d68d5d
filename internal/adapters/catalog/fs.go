package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/ports"
)

// FS is a filesystem-backed data catalog. It holds the configured entries
// and codecs; per-run location resolution happens on the views handed out
// by ForRun.
type FS struct {
	baseDir       string
	defaultFormat string
	entries       map[string]domain.CatalogEntry
	codecs        map[string]Codec
	logger        *slog.Logger
}

func NewFS(cfg domain.CatalogConfig, logger *slog.Logger) (*FS, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f := &FS{
		baseDir:       cfg.BaseDir,
		defaultFormat: cfg.DefaultFormat,
		entries:       make(map[string]domain.CatalogEntry, len(cfg.Entries)),
		codecs:        builtinCodecs(),
		logger:        logger.With("component", "catalog"),
	}
	if f.defaultFormat == "" {
		f.defaultFormat = "json"
	}
	if _, ok := f.codecs[f.defaultFormat]; !ok {
		return nil, &domain.ConfigError{
			Field: "catalog.default_format",
			Err:   fmt.Errorf("unknown format %q", f.defaultFormat),
		}
	}

	for _, entry := range cfg.Entries {
		if err := entry.Validate(); err != nil {
			return nil, &domain.ConfigError{Field: "catalog.entries", Err: err}
		}
		if entry.Format == "" {
			entry.Format = f.defaultFormat
		}
		if _, ok := f.codecs[entry.Format]; !ok {
			return nil, &domain.ConfigError{
				Field: "catalog.entries",
				Err:   fmt.Errorf("entry %q declares unknown format %q", entry.Key, entry.Format),
			}
		}
		if _, dup := f.entries[entry.Key]; dup {
			return nil, &domain.ConfigError{
				Field: "catalog.entries",
				Err:   fmt.Errorf("duplicate entry for key %q", entry.Key),
			}
		}
		f.entries[entry.Key] = entry
	}
	return f, nil
}

// Entries returns the configured entries keyed by catalog key.
func (f *FS) Entries() map[string]domain.CatalogEntry {
	out := make(map[string]domain.CatalogEntry, len(f.entries))
	for k, v := range f.entries {
		out[k] = v
	}
	return out
}

// ForRun scopes the catalog to one run context. Location templates resolve
// against the run's placeholders; bindings made on the view stay on it.
func (f *FS) ForRun(rc *domain.RunContext) ports.CatalogPort {
	return &runView{fs: f, rc: rc, bound: make(map[string]string)}
}

type runView struct {
	fs    *FS
	rc    *domain.RunContext
	mu    sync.RWMutex
	bound map[string]string
}

func (v *runView) Location(key string) (string, bool) {
	v.mu.RLock()
	loc, ok := v.bound[key]
	v.mu.RUnlock()
	if ok {
		return loc, true
	}

	entry, ok := v.fs.entries[key]
	if !ok {
		return "", false
	}
	loc, err := domain.ResolveTemplate(entry.Location, key, v.rc)
	if err != nil {
		v.fs.logger.Warn("location template failed to resolve",
			"key", key,
			"template", entry.Location,
			"error", err.Error())
		return "", false
	}
	return loc, true
}

func (v *runView) IsPersistent(key string) bool {
	_, ok := v.fs.entries[key]
	return ok
}

func (v *runView) Has(key string) bool {
	loc, ok := v.Location(key)
	if !ok {
		return false
	}
	_, err := os.Stat(v.fs.abs(loc))
	return err == nil
}

func (v *runView) Bind(key, location string) {
	v.mu.Lock()
	v.bound[key] = location
	v.mu.Unlock()
}

func (v *runView) Load(ctx context.Context, key string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc, ok := v.Location(key)
	if !ok {
		return nil, &domain.NotFoundError{Key: key}
	}
	data, err := os.ReadFile(v.fs.abs(loc))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.NotFoundError{Key: key}
		}
		return nil, fmt.Errorf("read %q from %s: %w", key, loc, err)
	}

	value, err := v.codecFor(key).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %q from %s: %w", key, loc, err)
	}
	return value, nil
}

func (v *runView) Save(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	loc, ok := v.Location(key)
	if !ok {
		return fmt.Errorf("key %q has no catalog entry to save to", key)
	}
	data, err := v.codecFor(key).Encode(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	path := v.fs.abs(loc)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", key, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %q to %s: %w", key, loc, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %q to %s: %w", key, loc, err)
	}

	v.fs.logger.Debug("catalog value saved", "key", key, "location", loc, "bytes", len(data))
	return nil
}

func (v *runView) codecFor(key string) Codec {
	if entry, ok := v.fs.entries[key]; ok {
		if codec, ok := v.fs.codecs[entry.Format]; ok {
			return codec
		}
	}
	return v.fs.codecs[v.fs.defaultFormat]
}

func (f *FS) abs(location string) string {
	if filepath.IsAbs(location) || f.baseDir == "" {
		return location
	}
	return filepath.Join(f.baseDir, location)
}
