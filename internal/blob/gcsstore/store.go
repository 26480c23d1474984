// Package gcsstore stores the encrypted payload in Google Cloud Storage.
// The object generation number plays the role of the ETag.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dvloznov/kids-bank/internal/blob"
)

// Store is the GCS implementation of blob.Transport.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a storage client. Without a credentials file it relies on
// Application Default Credentials (gcloud auth application-default login).
func New(ctx context.Context, bucket, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("New: create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Close closes the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Upload implements blob.Transport.
func (s *Store) Upload(ctx context.Context, key string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/plain"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}

	return generationTag(w.Attrs().Generation), nil
}

// Download implements blob.Transport.
func (s *Store) Download(ctx context.Context, key, etag string) (*blob.Download, error) {
	obj := s.client.Bucket(s.bucket).Object(key)

	if etag != "" {
		attrs, err := obj.Attrs(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("Download: attrs gs://%s/%s: %w", s.bucket, key, err)
		}
		if generationTag(attrs.Generation) == etag {
			return &blob.Download{NotModified: true, ETag: etag}, nil
		}
		obj = obj.Generation(attrs.Generation)
	}

	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Download: open reader gs://%s/%s: %w", s.bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Download: read object: %w", err)
	}
	return &blob.Download{Data: data, ETag: generationTag(r.Attrs.Generation)}, nil
}

func generationTag(gen int64) string {
	return strconv.FormatInt(gen, 10)
}

// Ensure Store implements blob.Transport.
var _ blob.Transport = (*Store)(nil)
