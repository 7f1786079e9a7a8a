package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errNotOpen = errors.New("backend not open")

// MemoryBackend keeps partitions in process memory. Data lives as long as the value.
type MemoryBackend struct {
	mu         sync.RWMutex
	open       bool
	schema     Schema
	partitions map[string]*memoryPartition
}

type memoryPartition struct {
	schema  PartitionSchema
	records map[string]Record
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{partitions: make(map[string]*memoryPartition)}
}

func (b *MemoryBackend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = true
	return nil
}

func (b *MemoryBackend) Schema(ctx context.Context) (Schema, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return Schema{}, errNotOpen
	}
	return b.schema, nil
}

func (b *MemoryBackend) Migrate(ctx context.Context, schema Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return errNotOpen
	}

	b.schema = b.schema.Merge(schema)
	for _, p := range b.schema.Partitions {
		if existing, ok := b.partitions[p.Name]; ok {
			existing.schema = p
			continue
		}
		b.partitions[p.Name] = &memoryPartition{schema: p, records: make(map[string]Record)}
	}
	return nil
}

// partition must be called with mu held.
func (b *MemoryBackend) partition(name string) (*memoryPartition, error) {
	if !b.open {
		return nil, errNotOpen
	}
	p, ok := b.partitions[name]
	if !ok {
		return nil, unknownPartition(name)
	}
	return p, nil
}

func (b *MemoryBackend) Get(ctx context.Context, partition, id string) (Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.partition(partition)
	if err != nil {
		return Record{}, false, err
	}
	r, ok := p.records[id]
	return r.Clone(), ok, nil
}

func (b *MemoryBackend) Put(ctx context.Context, partition string, record Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.partition(partition)
	if err != nil {
		return err
	}
	p.records[record.ID] = record.Clone()
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, partition, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.partition(partition)
	if err != nil {
		return err
	}
	delete(p.records, id)
	return nil
}

func (b *MemoryBackend) GetAll(ctx context.Context, partition string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.partition(partition)
	if err != nil {
		return nil, err
	}
	return sortedRecords(p.records, func(Record) bool { return true }), nil
}

func (b *MemoryBackend) GetByIndex(ctx context.Context, partition, index, value string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, err := b.partition(partition)
	if err != nil {
		return nil, err
	}
	if !p.schema.HasIndex(index) {
		return nil, unknownIndex(partition, index)
	}
	return sortedRecords(p.records, func(r Record) bool {
		v, _ := IndexValue(r, index)
		return v == value
	}), nil
}

func (b *MemoryBackend) DeleteRange(ctx context.Context, partition, index string, keys KeyRange) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.partition(partition)
	if err != nil {
		return 0, err
	}
	if !p.schema.HasIndex(index) {
		return 0, unknownIndex(partition, index)
	}
	removed := 0
	for id, r := range p.records {
		if v, _ := IndexValue(r, index); keys.Contains(v) {
			delete(p.records, id)
			removed++
		}
	}
	return removed, nil
}

func (b *MemoryBackend) Clear(ctx context.Context, partition string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.partition(partition)
	if err != nil {
		return err
	}
	p.records = make(map[string]Record)
	return nil
}

// Close marks the backend closed. Data is kept and visible again after Open.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	return nil
}

// sortedRecords returns copies of the matching records ordered by ID.
func sortedRecords(records map[string]Record, match func(Record) bool) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
