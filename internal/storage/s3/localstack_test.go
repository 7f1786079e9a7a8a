//go:build integration

package s3

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/suite"

	"github.com/tutoapp/practicecache/internal/storage"
)

// LocalStackSuite runs the storage adapter against a LocalStack bucket.
type LocalStackSuite struct {
	suite.Suite
	ctx    context.Context
	config *Config
	client *s3.Client
}

func TestLocalStack(t *testing.T) {
	if os.Getenv("AWS_ENDPOINT_URL") == "" {
		t.Skip("Skipping LocalStack integration tests - no endpoint configured")
	}
	suite.Run(t, new(LocalStackSuite))
}

func (s *LocalStackSuite) SetupSuite() {
	s.ctx = context.Background()

	s.config = NewDefaultConfig()
	s.config.Bucket = "practice-integration"
	s.config.Prefix = "suite"
	s.config.Endpoint = os.Getenv("AWS_ENDPOINT_URL")
	s.config.AccessKeyID = "test"
	s.config.SecretAccessKey = "test"
	s.config.ForcePathStyle = true

	client, err := NewClient(s.ctx, s.config)
	s.Require().NoError(err)
	s.client = client

	// Ignore error if bucket already exists
	_, _ = s.client.CreateBucket(s.ctx, &s3.CreateBucketInput{Bucket: aws.String(s.config.Bucket)})
}

func (s *LocalStackSuite) SetupTest() {
	backend, err := NewBackend(s.config)
	s.Require().NoError(err)
	adapter := storage.NewAdapter(backend)
	s.Require().NoError(adapter.ClearAll(s.ctx))
	s.Require().NoError(adapter.Close())
}

func (s *LocalStackSuite) newAdapter() *storage.Adapter {
	backend, err := NewBackend(s.config)
	s.Require().NoError(err)
	adapter := storage.NewAdapter(backend)
	s.T().Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func (s *LocalStackSuite) TestRecordRoundTrip() {
	adapter := s.newAdapter()
	payload, _ := json.Marshal([]string{"maison", "jardin"})

	s.Require().NoError(adapter.Put(s.ctx, storage.PartitionExerciseCache, storage.Record{
		ID:        "exercise-mots-2",
		Type:      "mots",
		Priority:  1,
		Timestamp: time.Now(),
		Payload:   payload,
	}))

	record, found, err := adapter.Get(s.ctx, storage.PartitionExerciseCache, "exercise-mots-2")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(1, record.Priority)
	s.JSONEq(string(payload), string(record.Payload))

	byType, err := adapter.GetByIndex(s.ctx, storage.PartitionExerciseCache, storage.IndexType, "mots")
	s.Require().NoError(err)
	s.Len(byType, 1)
}

func (s *LocalStackSuite) TestDeleteOlderThan() {
	adapter := s.newAdapter()
	now := time.Now()

	for i, age := range []time.Duration{time.Hour, 2 * time.Hour, time.Minute} {
		s.Require().NoError(adapter.Put(s.ctx, storage.PartitionValidationCache, storage.Record{
			ID:        string(rune('a' + i)),
			Timestamp: now.Add(-age),
		}))
	}

	removed, err := adapter.DeleteOlderThan(s.ctx, storage.PartitionValidationCache, now.Add(-30*time.Minute))
	s.Require().NoError(err)
	s.Equal(2, removed)

	remaining, err := adapter.GetAll(s.ctx, storage.PartitionValidationCache)
	s.Require().NoError(err)
	s.Len(remaining, 1)
}

func (s *LocalStackSuite) TestSchemaSurvivesReconnect() {
	first := s.newAdapter()
	s.Require().NoError(first.Connect(s.ctx))
	s.Require().NoError(first.Close())

	backend, err := NewBackend(s.config)
	s.Require().NoError(err)
	schema, err := func() (storage.Schema, error) {
		s.Require().NoError(backend.Open(s.ctx))
		defer backend.Close()
		return backend.Schema(s.ctx)
	}()
	s.Require().NoError(err)
	s.Equal(storage.DefaultSchema().Version, schema.Version)
	_, ok := schema.Partition(storage.PartitionSettings)
	s.True(ok)
}

func (s *LocalStackSuite) TestMissingBucketFailsConnect() {
	cfg := *s.config
	cfg.Bucket = "practice-missing-bucket"
	backend, err := NewBackend(&cfg)
	s.Require().NoError(err)

	adapter := storage.NewAdapter(backend)
	err = adapter.Connect(s.ctx)
	s.Error(err)
	s.Equal(storage.StateFailed, adapter.State())
}
