// Package storage provides blob store implementations backing the batch-file
// selector: Google Cloud Storage for production and an in-memory store for
// tests and local development.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore implements news.BlobStore for a single Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore initializes a GCS client and verifies bucket access.
// Authentication is handled via Google's Application Default Credentials.
func NewGCSStore(ctx context.Context, bucketName string) (*GCSStore, error) {
	if bucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	// Fail fast on startup if the bucket is missing or unreadable.
	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("get GCS bucket %q attributes: %w", bucketName, err)
	}
	return &GCSStore{client: client, bucket: bucketName}, nil
}

// List returns the names of all objects under the prefix.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Download copies the object's contents to destPath.
func (s *GCSStore) Download(ctx context.Context, object, destPath string) error {
	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open GCS object %s: %w", object, err)
	}
	defer func() { _ = r.Close() }()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("download GCS object %s: %w", object, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("close %s: %w", destPath, err)
	}
	return nil
}

// Copy duplicates src to dst within the bucket.
func (s *GCSStore) Copy(ctx context.Context, src, dst string) error {
	bkt := s.client.Bucket(s.bucket)
	if _, err := bkt.Object(dst).CopierFrom(bkt.Object(src)).Run(ctx); err != nil {
		return fmt.Errorf("copy GCS object %s to %s: %w", src, dst, err)
	}
	return nil
}

// Delete removes the object from the bucket.
func (s *GCSStore) Delete(ctx context.Context, object string) error {
	if err := s.client.Bucket(s.bucket).Object(object).Delete(ctx); err != nil {
		return fmt.Errorf("delete GCS object %s: %w", object, err)
	}
	return nil
}

// Close releases the underlying GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
