package ports

import (
	"context"

	"github.com/eleven-am/meandra/internal/domain"
)

// CatalogPort is a run-scoped view of the data catalog: location templates
// are already resolved against the run context behind it.
type CatalogPort interface {
	// Load reads and decodes the value stored for a key. Keys with no
	// entry, no runtime binding, and no file resolve to a NotFoundError.
	Load(ctx context.Context, key string) (interface{}, error)
	// Save encodes and durably writes a value for a persistent key,
	// creating parent directories as needed.
	Save(ctx context.Context, key string, value interface{}) error
	// Has reports whether the key can be served right now: a bound
	// location or a configured entry whose resolved location exists.
	Has(key string) bool
	// IsPersistent reports whether the key has a configured entry, which
	// makes node outputs for it durable.
	IsPersistent(key string) bool
	// Location returns the resolved location for a key, if any.
	Location(key string) (string, bool)
	// Bind points a key at an explicit location, used when a resume
	// restores reference bindings from checkpoint records.
	Bind(key, location string)
}

// CatalogProvider scopes a configured catalog to one run.
type CatalogProvider interface {
	ForRun(rc *domain.RunContext) CatalogPort
}
