package store

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"

	"github.com/menta2k/labelviz/pkg/types"
)

// ObjectOpener opens a reader on one bucket object
type ObjectOpener func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

// GCSFetcher reads objects from Google Cloud Storage
type GCSFetcher struct {
	open     ObjectOpener
	MaxBytes int64
}

// NewGCSFetcher creates a fetcher around a storage client
func NewGCSFetcher(client *storage.Client) *GCSFetcher {
	return NewGCSFetcherWithOpener(func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		return client.Bucket(bucket).Object(key).NewReader(ctx)
	})
}

// NewGCSFetcherWithOpener creates a fetcher with a custom object opener
func NewGCSFetcherWithOpener(open ObjectOpener) *GCSFetcher {
	return &GCSFetcher{open: open}
}

// Fetch implements Fetcher
func (f *GCSFetcher) Fetch(ctx context.Context, ref types.ObjectRef) ([]byte, error) {
	r, err := f.open(ctx, ref.Bucket, ref.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, errors.Wrapf(err, "gs://%s/%s not found", ref.Bucket, ref.Key)
		}
		return nil, errors.Wrapf(err, "open gcs object %s/%s", ref.Bucket, ref.Key)
	}
	defer r.Close()

	return readAll(r, f.MaxBytes, ref)
}
