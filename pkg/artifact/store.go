package artifact

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is a content-addressed blob store backed by a single bucket.
// Objects are keyed by their SHA-256 digest, matching types.Artifact's
// pointer field.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to an S3-compatible endpoint and returns a Store over
// bucket, creating the bucket if it does not already exist.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: client, bucket: bucket}, nil
}

// Put uploads size bytes read from r under digest, the artifact's
// SHA-256 hex string.
func (s *Store) Put(ctx context.Context, digest string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, digest, r, size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("put artifact blob %s: %w", digest, err)
	}
	return nil
}

// Get opens a reader over the blob stored under digest. Callers must
// close the returned reader.
func (s *Store) Get(ctx context.Context, digest string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, digest, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get artifact blob %s: %w", digest, err)
	}
	return obj, nil
}

// Delete removes the blob stored under digest.
func (s *Store) Delete(ctx context.Context, digest string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, digest, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete artifact blob %s: %w", digest, err)
	}
	return nil
}
