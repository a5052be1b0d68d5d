package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
)

// BindingKind tells how an output value was captured in a checkpoint.
type BindingKind string

const (
	// BindingInline embeds the JSON-encoded value in the record itself.
	BindingInline BindingKind = "inline"
	// BindingReference records the catalog location the value was persisted
	// to; the value is reloaded through the catalog on resume.
	BindingReference BindingKind = "reference"
)

// OutputBinding captures one produced output key inside a checkpoint
// record, either by value or by catalog location.
type OutputBinding struct {
	Kind     BindingKind     `json:"kind"`
	Value    json.RawMessage `json:"value,omitempty"`
	Location string          `json:"location,omitempty"`
}

// CheckpointRecord is one append-only entry in a run's checkpoint log. A
// record is written after a node reaches a terminal execution state. Seq is
// assigned by the store and increases monotonically per run.
type CheckpointRecord struct {
	RunID          string                   `json:"run_id"`
	NodeID         string                   `json:"node_id"`
	State          NodeRunState             `json:"state"`
	OutputBindings map[string]OutputBinding `json:"output_bindings,omitempty"`
	Error          string                   `json:"error,omitempty"`
	Timestamp      time.Time                `json:"timestamp"`
	Seq            uint64                   `json:"seq"`
}

// DroppedRecord describes a checkpoint entry discarded while loading
// because it failed integrity checks.
type DroppedRecord struct {
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
}

// CheckpointLog is the result of loading a run's checkpoint history:
// the surviving records in sequence order plus a report of anything
// discarded. Corruption is never fatal to a load.
type CheckpointLog struct {
	Records []CheckpointRecord `json:"records"`
	Dropped []DroppedRecord    `json:"dropped,omitempty"`
}

// LastStates folds the log into the final recorded state per node, in
// sequence order so later records win.
func (l CheckpointLog) LastStates() map[string]CheckpointRecord {
	out := make(map[string]CheckpointRecord, len(l.Records))
	for _, rec := range l.Records {
		out[rec.NodeID] = rec
	}
	return out
}

// recordEnvelope frames a record payload with a checksum of its raw bytes.
type recordEnvelope struct {
	Sum    string          `json:"sum"`
	Record json.RawMessage `json:"record"`
}

// EncodeCheckpointRecord serializes a record with an xxhash64 checksum over
// the payload bytes so corruption is detectable on load.
func EncodeCheckpointRecord(rec CheckpointRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint record: %w", err)
	}
	env := recordEnvelope{
		Sum:    strconv.FormatUint(xxhash.Sum64(payload), 16),
		Record: payload,
	}
	return json.Marshal(env)
}

// DecodeCheckpointRecord reverses EncodeCheckpointRecord. Framing or
// checksum violations come back as a CorruptRecordError so callers can
// discard the record and continue.
func DecodeCheckpointRecord(data []byte) (CheckpointRecord, error) {
	var env recordEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return CheckpointRecord{}, &CorruptRecordError{Reason: "unreadable envelope: " + err.Error()}
	}
	if len(env.Record) == 0 {
		return CheckpointRecord{}, &CorruptRecordError{Reason: "empty record payload"}
	}
	sum, err := strconv.ParseUint(env.Sum, 16, 64)
	if err != nil {
		return CheckpointRecord{}, &CorruptRecordError{Reason: "unreadable checksum: " + err.Error()}
	}
	if got := xxhash.Sum64(env.Record); got != sum {
		return CheckpointRecord{}, &CorruptRecordError{
			Reason: fmt.Sprintf("checksum mismatch: stored %x computed %x", sum, got),
		}
	}
	var rec CheckpointRecord
	if err := json.Unmarshal(env.Record, &rec); err != nil {
		return CheckpointRecord{}, &CorruptRecordError{Reason: "unreadable payload: " + err.Error()}
	}
	if rec.RunID == "" || rec.NodeID == "" {
		return CheckpointRecord{}, &CorruptRecordError{RunID: rec.RunID, Seq: rec.Seq, Reason: "missing run or node id"}
	}
	return rec, nil
}
