package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tutoapp/practicecache/internal/storage"
)

const (
	schemaObject = "_schema.json"
	// S3 accepts at most 1000 keys per DeleteObjects request.
	deleteBatchSize = 1000
)

// Backend stores records as JSON objects in a bucket:
// <prefix>/<partition>/<escaped id>.json, with the schema in <prefix>/_schema.json.
// Secondary indexes are evaluated client side.
type Backend struct {
	config    *Config
	newClient func(ctx context.Context) (API, error)
	logger    *slog.Logger

	mu     sync.RWMutex
	client API
	schema storage.Schema
	open   bool
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend
type Option func(*Backend)

// WithClient uses client instead of building one from the AWS configuration chain.
func WithClient(client API) Option {
	return func(b *Backend) {
		b.newClient = func(context.Context) (API, error) { return client, nil }
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// NewBackend creates an S3 backend. The client is created on Open so that
// credential and network failures surface as connection failures.
func NewBackend(cfg *Config, opts ...Option) (*Backend, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}

	b := &Backend{config: cfg}
	b.newClient = func(ctx context.Context) (API, error) {
		return NewClient(ctx, cfg)
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "s3-backend", "bucket", cfg.Bucket)
	return b, nil
}

// Open creates the client, checks the bucket and loads the stored schema.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return nil
	}

	ctx, cancel := b.requestContext(ctx)
	defer cancel()

	if b.client == nil {
		client, err := b.newClient(ctx)
		if err != nil {
			return err
		}
		b.client = client
	}

	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.config.Bucket)}); err != nil {
		return b.translateError(err, "HeadBucket", b.config.Bucket)
	}

	data, found, err := b.getObject(ctx, b.client, b.key(schemaObject))
	if err != nil {
		return err
	}
	b.schema = storage.Schema{}
	if found {
		if err := json.Unmarshal(data, &b.schema); err != nil {
			return fmt.Errorf("invalid schema object: %w", err)
		}
	}

	b.open = true
	b.logger.Debug("S3 backend opened", "schema_version", b.schema.Version)
	return nil
}

func (b *Backend) Schema(ctx context.Context) (storage.Schema, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return storage.Schema{}, fmt.Errorf("backend not open")
	}
	return b.schema, nil
}

// Migrate records the merged schema. Partitions are key prefixes and need no creation.
func (b *Backend) Migrate(ctx context.Context, schema storage.Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return fmt.Errorf("backend not open")
	}

	merged := b.schema.Merge(schema)
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}

	ctx, cancel := b.requestContext(ctx)
	defer cancel()
	if err := b.putObject(ctx, b.client, b.key(schemaObject), data); err != nil {
		return err
	}
	b.schema = merged
	return nil
}

func (b *Backend) Get(ctx context.Context, partition, id string) (storage.Record, bool, error) {
	client, _, err := b.partition(partition)
	if err != nil {
		return storage.Record{}, false, err
	}

	ctx, cancel := b.requestContext(ctx)
	defer cancel()

	data, found, err := b.getObject(ctx, client, b.recordKey(partition, id))
	if err != nil || !found {
		return storage.Record{}, false, err
	}

	var record storage.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return storage.Record{}, false, fmt.Errorf("invalid record %s/%s: %w", partition, id, err)
	}
	return record, true, nil
}

func (b *Backend) Put(ctx context.Context, partition string, record storage.Record) error {
	client, _, err := b.partition(partition)
	if err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	ctx, cancel := b.requestContext(ctx)
	defer cancel()
	return b.putObject(ctx, client, b.recordKey(partition, record.ID), data)
}

func (b *Backend) Delete(ctx context.Context, partition, id string) error {
	client, _, err := b.partition(partition)
	if err != nil {
		return err
	}

	ctx, cancel := b.requestContext(ctx)
	defer cancel()

	key := b.recordKey(partition, id)
	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isErrorType[*s3types.NoSuchKey](err) {
		return b.translateError(err, "DeleteObject", key)
	}
	return nil
}

func (b *Backend) GetAll(ctx context.Context, partition string) ([]storage.Record, error) {
	if _, _, err := b.partition(partition); err != nil {
		return nil, err
	}
	return b.scan(ctx, partition, func(storage.Record) bool { return true })
}

func (b *Backend) GetByIndex(ctx context.Context, partition, index, value string) ([]storage.Record, error) {
	_, schema, err := b.partition(partition)
	if err != nil {
		return nil, err
	}
	if !schema.HasIndex(index) {
		return nil, fmt.Errorf("partition %q has no index %q", partition, index)
	}
	return b.scan(ctx, partition, func(r storage.Record) bool {
		v, _ := storage.IndexValue(r, index)
		return v == value
	})
}

func (b *Backend) DeleteRange(ctx context.Context, partition, index string, keys storage.KeyRange) (int, error) {
	_, schema, err := b.partition(partition)
	if err != nil {
		return 0, err
	}
	if !schema.HasIndex(index) {
		return 0, fmt.Errorf("partition %q has no index %q", partition, index)
	}

	records, err := b.scan(ctx, partition, func(r storage.Record) bool {
		v, _ := storage.IndexValue(r, index)
		return keys.Contains(v)
	})
	if err != nil {
		return 0, err
	}

	objectKeys := make([]string, len(records))
	for i, r := range records {
		objectKeys[i] = b.recordKey(partition, r.ID)
	}
	if err := b.deleteKeys(ctx, objectKeys); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (b *Backend) Clear(ctx context.Context, partition string) error {
	if _, _, err := b.partition(partition); err != nil {
		return err
	}

	objectKeys, err := b.listKeys(ctx, partition)
	if err != nil {
		return err
	}
	return b.deleteKeys(ctx, objectKeys)
}

// Close marks the backend closed. The client is kept for a later Open.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	return nil
}

// Helper methods

func (b *Backend) partition(name string) (API, storage.PartitionSchema, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, storage.PartitionSchema{}, fmt.Errorf("backend not open")
	}
	p, ok := b.schema.Partition(name)
	if !ok {
		return nil, storage.PartitionSchema{}, fmt.Errorf("unknown partition %q", name)
	}
	return b.client, p, nil
}

func (b *Backend) currentClient() API {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

func (b *Backend) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, b.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (b *Backend) key(name string) string {
	if b.config.Prefix == "" {
		return name
	}
	return path.Join(b.config.Prefix, name)
}

func (b *Backend) partitionPrefix(partition string) string {
	return b.key(partition) + "/"
}

func (b *Backend) recordKey(partition, id string) string {
	return b.partitionPrefix(partition) + url.PathEscape(id) + ".json"
}

func (b *Backend) getObject(ctx context.Context, client API, key string) ([]byte, bool, error) {
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isErrorType[*s3types.NoSuchKey](err) {
			return nil, false, nil
		}
		return nil, false, b.translateError(err, "GetObject", key)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, true, nil
}

func (b *Backend) putObject(ctx context.Context, client API, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return b.translateError(err, "PutObject", key)
	}
	return nil
}

func (b *Backend) listKeys(ctx context.Context, partition string) ([]string, error) {
	ctx, cancel := b.requestContext(ctx)
	defer cancel()

	paginator := s3.NewListObjectsV2Paginator(b.currentClient(), &s3.ListObjectsV2Input{
		Bucket: aws.String(b.config.Bucket),
		Prefix: aws.String(b.partitionPrefix(partition)),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, b.translateError(err, "ListObjectsV2", partition)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if strings.HasSuffix(key, ".json") {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func (b *Backend) scan(ctx context.Context, partition string, match func(storage.Record) bool) ([]storage.Record, error) {
	keys, err := b.listKeys(ctx, partition)
	if err != nil {
		return nil, err
	}

	ctx, cancel := b.requestContext(ctx)
	defer cancel()

	client := b.currentClient()
	records := make([]storage.Record, 0, len(keys))
	for _, key := range keys {
		data, found, err := b.getObject(ctx, client, key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		var record storage.Record
		if err := json.Unmarshal(data, &record); err != nil {
			b.logger.Warn("skipping unreadable record", "key", key, "error", err)
			continue
		}
		if match(record) {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (b *Backend) deleteKeys(ctx context.Context, keys []string) error {
	ctx, cancel := b.requestContext(ctx)
	defer cancel()

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		objects := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(key)})
		}

		output, err := b.currentClient().DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.config.Bucket),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return b.translateError(err, "DeleteObjects", b.config.Bucket)
		}
		if len(output.Errors) > 0 {
			first := output.Errors[0]
			return fmt.Errorf("failed to delete %d objects, first %s: %s",
				len(output.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return nil
}

func (b *Backend) translateError(err error, operation, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchBucket](err):
		return fmt.Errorf("bucket not found: %s: %w", b.config.Bucket, err)
	case isErrorType[*s3types.NotFound](err):
		return fmt.Errorf("%s: %s not found: %w", operation, key, err)
	default:
		return fmt.Errorf("%s failed for %s: %w", operation, key, err)
	}
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
