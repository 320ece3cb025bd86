package minio

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/dbpfindex/blobstore"
)

const contentType = "application/octet-stream"

// Store keeps blobs as objects below a key prefix of one bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore returns a store for bucket. A non-empty rootPrefix is treated
// as a directory ("snapshots" and "snapshots/" are the same).
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	if rootPrefix != "" {
		rootPrefix = strings.TrimSuffix(rootPrefix, "/") + "/"
	}
	return &Store{client: client, bucket: bucket, prefix: rootPrefix}
}

// Dial connects to endpoint with static credentials.
func Dial(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: dial %s: %w", endpoint, err)
	}
	return client, nil
}

func (s *Store) key(name string) string { return s.prefix + name }

func notFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open returns a handle whose reads are ranged GETs on the object. The
// object must exist when Open is called.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(name, err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, s.wrap(name, err)
	}
	return &object{obj: obj, size: info.Size}, nil
}

func (s *Store) wrap(name string, err error) error {
	if notFound(err) {
		return fmt.Errorf("minio: %s/%s: %w", s.bucket, s.key(name), blobstore.ErrNotFound)
	}
	return fmt.Errorf("minio: %s/%s: %w", s.bucket, s.key(name), err)
}

// Put uploads data in one request; readers never see a partial object.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return s.wrap(name, err)
	}
	return nil
}

// Delete removes name. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{}); err != nil && !notFound(err) {
		return s.wrap(name, err)
	}
	return nil
}

// List returns the sorted names below prefix, relative to the store root.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	opts := minio.ListObjectsOptions{Prefix: s.key(prefix), Recursive: true}
	for info := range s.client.ListObjects(ctx, s.bucket, opts) {
		if info.Err != nil {
			return nil, fmt.Errorf("minio: list %s/%s: %w", s.bucket, opts.Prefix, info.Err)
		}
		names = append(names, strings.TrimPrefix(info.Key, s.prefix))
	}
	slices.Sort(names)
	return names, nil
}

// object adapts *minio.Object, which already implements io.ReaderAt with
// ranged requests.
type object struct {
	obj  *minio.Object
	size int64
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return o.obj.ReadAt(p, off)
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return o.obj.Close() }
