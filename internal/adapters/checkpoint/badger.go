package checkpoint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"

	"github.com/eleven-am/meandra/internal/domain"
)

// Badger is the durable checkpoint store. Records are framed with a
// checksum by the domain codec and written under keys whose lexicographic
// order equals append order, so loading is a single ordered prefix scan.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens (or creates) a store per the checkpoint configuration.
func Open(cfg domain.CheckpointConfig, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, &domain.ConfigError{
				Field: "checkpoint.dir",
				Err:   errors.New("must not be empty for an on-disk store"),
			}
		}
		opts = badger.DefaultOptions(cfg.Dir).WithSyncWrites(!cfg.NoSync)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return &Badger{
		db:     db,
		logger: logger.With("component", "checkpoint-store"),
	}, nil
}

// Append assigns the next sequence number for the record's run and writes
// the record and the advanced counter in one transaction.
func (s *Badger) Append(ctx context.Context, rec domain.CheckpointRecord) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.RunID == "" || rec.NodeID == "" {
		return fmt.Errorf("append checkpoint: record needs run and node ids")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		seqKey := []byte(domain.CheckpointSeqKey(rec.RunID))
		var seq uint64
		item, err := txn.Get(seqKey)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("sequence counter has %d bytes", len(val))
				}
				seq = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}

		seq++
		rec.Seq = seq
		data, err := domain.EncodeCheckpointRecord(rec)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(domain.CheckpointRecordKey(rec.RunID, seq)), data); err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], seq)
		if err := txn.Set(seqKey, buf[:]); err != nil {
			return err
		}
		return txn.Set([]byte(domain.RunIndexKey(rec.RunID)), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("append checkpoint for %s/%s: %w", rec.RunID, rec.NodeID, err)
	}

	s.logger.Debug("checkpoint appended",
		"run_id", rec.RunID,
		"node_id", rec.NodeID,
		"state", string(rec.State))
	return nil
}

// Load scans a run's records in sequence order. Records that fail framing
// or checksum verification are dropped and reported, never fatal.
func (s *Badger) Load(ctx context.Context, runID string) (domain.CheckpointLog, error) {
	var log domain.CheckpointLog
	if s.closed.Load() {
		return log, domain.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return log, err
	}

	prefix := []byte(domain.CheckpointRunPrefix(runID))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			rec, err := domain.DecodeCheckpointRecord(data)
			if err != nil {
				seq := seqFromKey(key)
				log.Dropped = append(log.Dropped, domain.DroppedRecord{Seq: seq, Reason: err.Error()})
				s.logger.Warn("discarding corrupt checkpoint record",
					"run_id", runID,
					"seq", seq,
					"error", err.Error())
				continue
			}
			log.Records = append(log.Records, rec)
		}
		return nil
	})
	if err != nil {
		return domain.CheckpointLog{}, fmt.Errorf("load checkpoints for %s: %w", runID, err)
	}
	return log, nil
}

// Runs lists run identifiers that have appended at least one record.
func (s *Badger) Runs(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, domain.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var runs []string
	prefix := []byte(domain.RunIndexPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().KeyCopy(nil))
			runs = append(runs, strings.TrimPrefix(key, domain.RunIndexPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *Badger) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// seqFromKey recovers the sequence number from a record key for corruption
// reports. Returns zero when even the key is mangled.
func seqFromKey(key string) uint64 {
	idx := strings.LastIndexByte(key, ':')
	if idx < 0 || idx+1 >= len(key) {
		return 0
	}
	seq, err := strconv.ParseUint(key[idx+1:], 16, 64)
	if err != nil {
		return 0
	}
	return seq
}
