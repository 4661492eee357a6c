// Package modelstore provides pluggable persistence for encoded mixture
// model snapshots.
//
// The Store interface abstracts the backend. Included implementations:
//
//   - LocalStore: local file system with memory-mapped reads and
//     atomic rename-based writes.
//   - MemoryStore: in-memory store for testing.
//   - s3.Store: AWS S3, with an optional DynamoDB-backed registry that
//     tracks the latest committed snapshot per model.
//   - minio.Store: MinIO and other S3-compatible object storage.
//
// Snapshots are opaque byte blobs; use the snapshot package to encode
// and decode them.
package modelstore
