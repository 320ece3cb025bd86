package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/dbpfindex/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockClient) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.UploadPartOutput)
	return out, args.Error(1)
}

func (m *mockClient) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.CreateMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockClient) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.CompleteMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockClient) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.AbortMultipartUploadOutput)
	return out, args.Error(1)
}

func keyIs(want string) func(*string) bool {
	return func(k *string) bool { return aws.ToString(k) == want }
}

func TestStore_OpenAndReadRange(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "bucket", "snap")

	client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return keyIs("snap/a.snap")(in.Key)
	})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(10)}, nil)

	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=6-9"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("6789")))}, nil)

	b, err := store.Open(t.Context(), "a.snap")
	require.NoError(t, err)
	assert.Equal(t, int64(10), b.Size())

	buf := make([]byte, 8)
	n, err := b.ReadAt(t.Context(), buf, 6)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
	assert.Equal(t, "6789", string(buf[:n]))

	_, err = b.ReadAt(t.Context(), buf, 10)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, b.Close())

	client.AssertExpectations(t)
}

func TestStore_OpenNotFound(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "bucket", "")

	client.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()
	_, err := store.Open(t.Context(), "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	boom := errors.New("boom")
	client.On("HeadObject", mock.Anything, mock.Anything).Return(nil, boom).Once()
	_, err = store.Open(t.Context(), "other")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_Put(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "bucket", "root/")

	var body []byte
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return keyIs("root/x.snap")(in.Key) && aws.ToString(in.Bucket) == "bucket"
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		body, _ = io.ReadAll(in.Body)
	}).Return(&s3.PutObjectOutput{}, nil)

	require.NoError(t, store.Put(t.Context(), "x.snap", []byte("payload")))
	assert.Equal(t, "payload", string(body))
	client.AssertExpectations(t)
}

func TestStore_DeleteAndList(t *testing.T) {
	client := new(mockClient)
	store := NewStore(client, "bucket", "root")

	client.On("DeleteObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})
	require.NoError(t, store.Delete(t.Context(), "gone"))

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Prefix) == "root/s"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("root/s2")},
			{Key: aws.String("root/s1")},
		},
		IsTruncated: aws.Bool(false),
	}, nil)

	names, err := store.List(t.Context(), "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, names)
}

func TestStore_Integration(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}

	store, err := New(t.Context(), bucket, WithPrefix("dbpfindex-test/"))
	require.NoError(t, err)

	require.NoError(t, store.Put(t.Context(), "it.snap", []byte("hello")))
	t.Cleanup(func() { _ = store.Delete(context.Background(), "it.snap") })

	got, err := blobstore.ReadAll(t.Context(), store, "it.snap")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
