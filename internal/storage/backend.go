package storage

import (
	"context"
	"fmt"
)

// Backend is a partitioned document store. Implementations must be safe for
// concurrent use once Open has returned.
type Backend interface {
	// Open acquires the underlying resource. A second connection may be refused with StorageBlocked.
	Open(ctx context.Context) error

	// Schema returns the stored schema, or a zero Schema for a fresh store.
	Schema(ctx context.Context) (Schema, error)

	// Migrate creates missing partitions and indexes and records the schema version.
	Migrate(ctx context.Context, schema Schema) error

	Get(ctx context.Context, partition, id string) (Record, bool, error)
	Put(ctx context.Context, partition string, record Record) error
	Delete(ctx context.Context, partition, id string) error
	GetAll(ctx context.Context, partition string) ([]Record, error)
	GetByIndex(ctx context.Context, partition, index, value string) ([]Record, error)
	DeleteRange(ctx context.Context, partition, index string, keys KeyRange) (int, error)
	Clear(ctx context.Context, partition string) error

	Close() error
}

func unknownPartition(partition string) error {
	return fmt.Errorf("unknown partition %q", partition)
}

func unknownIndex(partition, index string) error {
	return fmt.Errorf("partition %q has no index %q", partition, index)
}
