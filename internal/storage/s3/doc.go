/*
Package s3 provides an S3 storage backend for the persistent cache tier.

Records are stored one object per record so that single-key reads and writes map to one
request each:

	<prefix>/_schema.json                      stored schema (version + partitions)
	<prefix>/<partition>/<escaped id>.json     one storage.Record as JSON

Secondary indexes (type, timestamp) are evaluated client side after listing the partition
prefix with a ListObjectsV2 paginator. Range deletes and partition clears use batched
DeleteObjects requests.

# Configuration

	backend, err := s3.NewBackend(&s3.Config{
		Bucket:         "practice-progress",
		Prefix:         "tuto",
		Region:         "eu-west-3",
		Endpoint:       "http://localhost:9000", // MinIO or another S3-compatible store
		ForcePathStyle: true,
	})

Credentials come from the default AWS chain unless AccessKeyID is set, in which case a
static provider is used. The client is created in Open, so a missing region or unreachable
endpoint is reported as a connection failure by storage.Adapter.
*/
package s3
