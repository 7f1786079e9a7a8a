/*
Package storage provides the persistent tier: a partitioned record store behind one
lazily opened, shared connection.

# Architecture

	┌──────────────────────────────────────────────┐
	│  Adapter                                     │
	│  state: uninitialized → connecting → ready   │
	│                                 └──→ failed  │
	│  singleflight connect, retry, migration      │
	└──────────────────────────────────────────────┘
	                      │ Backend
	     ┌────────────────┼─────────────────┐
	┌────┴──────┐  ┌──────┴──────┐  ┌───────┴──────┐
	│  Memory   │  │    File     │  │ S3 (sub-pkg) │
	└───────────┘  └─────────────┘  └──────────────┘

Adapter is constructed once by the composition root and shared by every tier that needs
durability. It opens the backend on first use; concurrent first callers wait on the same
attempt. Retryable open failures (a directory locked by another connection, timeouts) are
retried with exponential backoff. Once an attempt fails the adapter stays failed and
returns the same STORAGE_UNAVAILABLE error without touching the backend until Reset.

# Partitions and indexes

Records live in named partitions. Each partition may declare a "type" and a "timestamp"
index. Timestamp keys are zero-padded nanoseconds so that string order is time order,
which lets DeleteOlderThan run as a range delete:

	removed, err := adapter.DeleteOlderThan(ctx, storage.PartitionValidationCache, time.Now().Add(-5*time.Minute))

# Schema migration

The schema carries a single integer version. On connect, a requested version newer than
the stored one merges the schemas: missing partitions and indexes are created and nothing
is dropped. A stored version newer than the requested one refuses the connection.
*/
package storage
