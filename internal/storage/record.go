package storage

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Partition names.
const (
	PartitionExerciseCache   = "exercise_cache"
	PartitionValidationCache = "validation_cache"
	PartitionUserProgress    = "user_progress"
	PartitionExerciseStats   = "exercise_stats"
	PartitionSettings        = "settings"
)

// Index names.
const (
	IndexType      = "type"
	IndexTimestamp = "timestamp"
)

// Record is one persisted document. ID is the primary key within its partition.
type Record struct {
	ID        string          `json:"id"`
	Type      string          `json:"type,omitempty"`
	Priority  int             `json:"priority"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	out := r
	if r.Payload != nil {
		out.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return out
}

// TimestampKey encodes t so that lexical order matches chronological order.
// Times before the Unix epoch, the zero time included, share the lowest key.
func TimestampKey(t time.Time) string {
	if t.Before(time.Unix(0, 0)) {
		return fmt.Sprintf("%020d", 0)
	}
	return fmt.Sprintf("%020d", t.UnixNano())
}

// IndexValue returns the key r has in the named index.
func IndexValue(r Record, index string) (string, bool) {
	switch index {
	case IndexType:
		return r.Type, true
	case IndexTimestamp:
		return TimestampKey(r.Timestamp), true
	}
	return "", false
}

// KeyRange bounds index keys. An empty bound is unbounded.
type KeyRange struct {
	Lower     string
	Upper     string
	LowerOpen bool
	UpperOpen bool
}

// UpperBound matches keys below upper, excluding upper itself when open.
func UpperBound(upper string, open bool) KeyRange {
	return KeyRange{Upper: upper, UpperOpen: open}
}

// Contains reports whether key falls inside the range.
func (r KeyRange) Contains(key string) bool {
	if r.Lower != "" {
		if key < r.Lower || (r.LowerOpen && key == r.Lower) {
			return false
		}
	}
	if r.Upper != "" {
		if key > r.Upper || (r.UpperOpen && key == r.Upper) {
			return false
		}
	}
	return true
}

// PartitionSchema declares one partition and its secondary indexes.
type PartitionSchema struct {
	Name    string   `json:"name"`
	Indexes []string `json:"indexes,omitempty"`
}

// HasIndex reports whether the partition declares index.
func (p PartitionSchema) HasIndex(index string) bool {
	return slices.Contains(p.Indexes, index)
}

// Schema is the versioned set of partitions. Migration is additive only.
type Schema struct {
	Version    int               `json:"version"`
	Partitions []PartitionSchema `json:"partitions"`
}

// DefaultSchema returns the partitions used by the application.
func DefaultSchema() Schema {
	return Schema{
		Version: 1,
		Partitions: []PartitionSchema{
			{Name: PartitionExerciseCache, Indexes: []string{IndexType, IndexTimestamp}},
			{Name: PartitionValidationCache, Indexes: []string{IndexTimestamp}},
			{Name: PartitionUserProgress, Indexes: []string{IndexTimestamp}},
			{Name: PartitionExerciseStats, Indexes: []string{IndexType, IndexTimestamp}},
			{Name: PartitionSettings},
		},
	}
}

// Partition returns the named partition schema.
func (s Schema) Partition(name string) (PartitionSchema, bool) {
	for _, p := range s.Partitions {
		if p.Name == name {
			return p, true
		}
	}
	return PartitionSchema{}, false
}

// Merge returns s extended with every partition and index of next that s lacks,
// stamped with next's version. Nothing in s is removed.
func (s Schema) Merge(next Schema) Schema {
	out := Schema{Version: max(s.Version, next.Version)}
	for _, p := range s.Partitions {
		out.Partitions = append(out.Partitions, PartitionSchema{Name: p.Name, Indexes: slices.Clone(p.Indexes)})
	}
	for _, p := range next.Partitions {
		idx := slices.IndexFunc(out.Partitions, func(e PartitionSchema) bool { return e.Name == p.Name })
		if idx < 0 {
			out.Partitions = append(out.Partitions, PartitionSchema{Name: p.Name, Indexes: slices.Clone(p.Indexes)})
			continue
		}
		for _, index := range p.Indexes {
			if !out.Partitions[idx].HasIndex(index) {
				out.Partitions[idx].Indexes = append(out.Partitions[idx].Indexes, index)
			}
		}
	}
	return out
}
