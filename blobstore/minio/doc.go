// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible services such as Ceph or
// Garage, without pulling in the AWS SDK.
//
//	client, err := minio.Dial("localhost:9000", "minioadmin", "minioadmin", false)
//	store := minio.NewStore(client, "my-bucket", "snapshots/")
package minio
