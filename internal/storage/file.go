package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tutoapp/practicecache/pkg/errors"
)

const (
	schemaFile = "schema.json"
	lockFile   = ".lock"
)

// FileConfig represents file backend configuration
type FileConfig struct {
	Directory   string `yaml:"directory"`
	Compression bool   `yaml:"compression"`
}

// FileBackend stores one JSON document per partition under a directory.
// Every mutation rewrites the partition through a temporary file and rename.
// A lock file keeps a second process from opening the same directory.
type FileBackend struct {
	// mu serializes mutations so partition files are written in order,
	// and guards mem, which Open replaces.
	mu     sync.RWMutex
	config FileConfig
	mem    *MemoryBackend
	locked bool
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a file backend rooted at config.Directory.
func NewFileBackend(config FileConfig) (*FileBackend, error) {
	if config.Directory == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "file backend directory cannot be empty").
			WithComponent("storage")
	}
	return &FileBackend{config: config, mem: NewMemoryBackend()}, nil
}

// Open takes the directory lock and loads every partition file.
func (b *FileBackend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.locked {
		return nil
	}
	if err := os.MkdirAll(b.config.Directory, 0750); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	lock, err := os.OpenFile(b.path(lockFile), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if stderrors.Is(err, fs.ErrExist) {
			return errors.NewError(errors.ErrCodeStorageBlocked, "storage directory is held by another connection").
				WithComponent("storage").
				WithDetail("directory", b.config.Directory)
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	_, _ = fmt.Fprintf(lock, "%d\n", os.Getpid())
	_ = lock.Close()
	b.locked = true

	if err := b.load(ctx); err != nil {
		_ = os.Remove(b.path(lockFile))
		b.locked = false
		return err
	}
	return nil
}

func (b *FileBackend) load(ctx context.Context) error {
	var schema Schema
	data, err := os.ReadFile(b.path(schemaFile))
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read schema: %w", err)
	default:
		if err := json.Unmarshal(data, &schema); err != nil {
			return corrupted(schemaFile, err)
		}
	}

	b.mem = NewMemoryBackend()
	_ = b.mem.Open(ctx)
	if schema.Version == 0 {
		return nil
	}
	if err := b.mem.Migrate(ctx, schema); err != nil {
		return err
	}

	for _, p := range schema.Partitions {
		records, err := b.readPartition(p.Name)
		if err != nil {
			return err
		}
		for _, r := range records {
			if err := b.mem.Put(ctx, p.Name, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *FileBackend) Schema(ctx context.Context) (Schema, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mem.Schema(ctx)
}

// Migrate extends the schema and writes schema.json plus any new, empty partition files.
func (b *FileBackend) Migrate(ctx context.Context, schema Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.mem.Migrate(ctx, schema); err != nil {
		return err
	}
	merged, err := b.mem.Schema(ctx)
	if err != nil {
		return err
	}
	for _, p := range merged.Partitions {
		if _, err := os.Stat(b.partitionPath(p.Name)); stderrors.Is(err, fs.ErrNotExist) {
			if err := b.writePartition(ctx, p.Name); err != nil {
				return err
			}
		}
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	return b.writeAtomic(schemaFile, data)
}

func (b *FileBackend) Get(ctx context.Context, partition, id string) (Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mem.Get(ctx, partition, id)
}

func (b *FileBackend) Put(ctx context.Context, partition string, record Record) error {
	return b.mutate(ctx, partition, func() error { return b.mem.Put(ctx, partition, record) })
}

func (b *FileBackend) Delete(ctx context.Context, partition, id string) error {
	return b.mutate(ctx, partition, func() error { return b.mem.Delete(ctx, partition, id) })
}

func (b *FileBackend) GetAll(ctx context.Context, partition string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mem.GetAll(ctx, partition)
}

func (b *FileBackend) GetByIndex(ctx context.Context, partition, index, value string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mem.GetByIndex(ctx, partition, index, value)
}

func (b *FileBackend) DeleteRange(ctx context.Context, partition, index string, keys KeyRange) (int, error) {
	var removed int
	err := b.mutate(ctx, partition, func() error {
		var err error
		removed, err = b.mem.DeleteRange(ctx, partition, index, keys)
		return err
	})
	return removed, err
}

func (b *FileBackend) Clear(ctx context.Context, partition string) error {
	return b.mutate(ctx, partition, func() error { return b.mem.Clear(ctx, partition) })
}

// Close releases the directory lock.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.locked {
		return nil
	}
	b.locked = false
	_ = b.mem.Close()
	if err := os.Remove(b.path(lockFile)); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// mutate applies fn to memory and rewrites the partition file. When the file
// cannot be written the partition is rolled back so memory matches disk.
func (b *FileBackend) mutate(ctx context.Context, partition string, fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	before, err := b.mem.GetAll(ctx, partition)
	if err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	if err := b.writePartition(ctx, partition); err != nil {
		b.restore(ctx, partition, before)
		return err
	}
	return nil
}

func (b *FileBackend) restore(ctx context.Context, partition string, records []Record) {
	_ = b.mem.Clear(ctx, partition)
	for _, r := range records {
		_ = b.mem.Put(ctx, partition, r)
	}
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.config.Directory, name)
}

func (b *FileBackend) partitionPath(partition string) string {
	name := partition + ".json"
	if b.config.Compression {
		name += ".gz"
	}
	return b.path(name)
}

func (b *FileBackend) readPartition(partition string) ([]Record, error) {
	file, err := os.Open(b.partitionPath(partition))
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file
	if b.config.Compression {
		gzipReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, corrupted(partition, err)
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	var records []Record
	if err := json.NewDecoder(reader).Decode(&records); err != nil {
		return nil, corrupted(partition, err)
	}
	return records, nil
}

// writePartition must be called with mu held.
func (b *FileBackend) writePartition(ctx context.Context, partition string) error {
	records, err := b.mem.GetAll(ctx, partition)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	var writer io.Writer = &buf
	var gzipWriter *gzip.Writer
	if b.config.Compression {
		gzipWriter = gzip.NewWriter(&buf)
		writer = gzipWriter
	}
	if err := json.NewEncoder(writer).Encode(records); err != nil {
		return err
	}
	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return err
		}
	}

	return b.writeAtomic(filepath.Base(b.partitionPath(partition)), buf.Bytes())
}

func (b *FileBackend) writeAtomic(name string, data []byte) error {
	target := b.path(name)
	tmpPath := target + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, target)
}

func corrupted(name string, cause error) error {
	return errors.NewError(errors.ErrCodeStorageCorrupted, "unreadable storage file").
		WithComponent("storage").
		WithDetail("file", name).
		WithCause(cause)
}
