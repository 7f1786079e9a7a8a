// Package storagetest provides backends for exercising storage failure paths in tests.
package storagetest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tutoapp/practicecache/internal/storage"
)

// FlakyBackend wraps a MemoryBackend and fails selected calls.
// OpenErr fails Open; OpErr fails every record operation once set.
type FlakyBackend struct {
	*storage.MemoryBackend

	mu      sync.Mutex
	openErr error
	opErr   error

	Opens atomic.Int64
	Calls atomic.Int64
}

var _ storage.Backend = (*FlakyBackend)(nil)

// New returns a backend that succeeds until configured otherwise.
func New() *FlakyBackend {
	return &FlakyBackend{MemoryBackend: storage.NewMemoryBackend()}
}

// FailOpen makes every Open return err. Nil restores success.
func (b *FlakyBackend) FailOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// FailOperations makes every record operation return err. Nil restores success.
func (b *FlakyBackend) FailOperations(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opErr = err
}

func (b *FlakyBackend) failure(open bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if open {
		return b.openErr
	}
	return b.opErr
}

func (b *FlakyBackend) Open(ctx context.Context) error {
	b.Opens.Add(1)
	if err := b.failure(true); err != nil {
		return err
	}
	return b.MemoryBackend.Open(ctx)
}

func (b *FlakyBackend) Get(ctx context.Context, partition, id string) (storage.Record, bool, error) {
	b.Calls.Add(1)
	if err := b.failure(false); err != nil {
		return storage.Record{}, false, err
	}
	return b.MemoryBackend.Get(ctx, partition, id)
}

func (b *FlakyBackend) Put(ctx context.Context, partition string, record storage.Record) error {
	b.Calls.Add(1)
	if err := b.failure(false); err != nil {
		return err
	}
	return b.MemoryBackend.Put(ctx, partition, record)
}

func (b *FlakyBackend) Delete(ctx context.Context, partition, id string) error {
	b.Calls.Add(1)
	if err := b.failure(false); err != nil {
		return err
	}
	return b.MemoryBackend.Delete(ctx, partition, id)
}

func (b *FlakyBackend) GetAll(ctx context.Context, partition string) ([]storage.Record, error) {
	b.Calls.Add(1)
	if err := b.failure(false); err != nil {
		return nil, err
	}
	return b.MemoryBackend.GetAll(ctx, partition)
}

func (b *FlakyBackend) GetByIndex(ctx context.Context, partition, index, value string) ([]storage.Record, error) {
	b.Calls.Add(1)
	if err := b.failure(false); err != nil {
		return nil, err
	}
	return b.MemoryBackend.GetByIndex(ctx, partition, index, value)
}

func (b *FlakyBackend) DeleteRange(ctx context.Context, partition, index string, keys storage.KeyRange) (int, error) {
	b.Calls.Add(1)
	if err := b.failure(false); err != nil {
		return 0, err
	}
	return b.MemoryBackend.DeleteRange(ctx, partition, index, keys)
}

func (b *FlakyBackend) Clear(ctx context.Context, partition string) error {
	b.Calls.Add(1)
	if err := b.failure(false); err != nil {
		return err
	}
	return b.MemoryBackend.Clear(ctx, partition)
}
