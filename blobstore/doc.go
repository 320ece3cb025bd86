// Package blobstore provides storage for index snapshots.
//
// BlobStore reads and writes whole immutable blobs by name. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, reads through mmap
//   - MemoryStore: in-process map for tests
//   - CachingStore: whole-blob memory cache in front of another store
//   - s3.Store: Amazon S3 with multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
