package domain

import "fmt"

const (
	CheckpointRecordPrefix = "ckpt:record:"
	CheckpointSeqPrefix    = "ckpt:seq:"
	RunIndexPrefix         = "run:index:"
)

// CheckpointRecordKey builds the storage key for one checkpoint record.
// Sequence numbers are zero-padded hex so lexicographic key order equals
// append order.
func CheckpointRecordKey(runID string, seq uint64) string {
	return fmt.Sprintf("%s%s:%016x", CheckpointRecordPrefix, runID, seq)
}

// CheckpointRunPrefix builds the key prefix covering every record of a run.
func CheckpointRunPrefix(runID string) string {
	return fmt.Sprintf("%s%s:", CheckpointRecordPrefix, runID)
}

// CheckpointSeqKey builds the key holding a run's sequence counter.
func CheckpointSeqKey(runID string) string {
	return fmt.Sprintf("%s%s", CheckpointSeqPrefix, runID)
}

// RunIndexKey builds the key marking that a run exists, used to enumerate
// runs without scanning their records.
func RunIndexKey(runID string) string {
	return fmt.Sprintf("%s%s", RunIndexPrefix, runID)
}
