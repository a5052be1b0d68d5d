package ports

import (
	"context"

	"github.com/eleven-am/meandra/internal/domain"
)

// CheckpointPort is the append-only durable record of node completions.
type CheckpointPort interface {
	// Append writes one record. The store assigns the sequence number;
	// the write is atomic with the sequence advance.
	Append(ctx context.Context, rec domain.CheckpointRecord) error
	// Load returns a run's surviving records in sequence order. Records
	// failing integrity checks are reported as dropped, never as an error.
	Load(ctx context.Context, runID string) (domain.CheckpointLog, error)
	// Runs lists run identifiers with at least one record, sorted.
	Runs(ctx context.Context) ([]string, error)
	Close() error
}
