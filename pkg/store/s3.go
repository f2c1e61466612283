package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/menta2k/labelviz/pkg/types"
)

// S3API is the part of the S3 client the fetcher uses
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads objects from Amazon S3
type S3Fetcher struct {
	client   S3API
	MaxBytes int64
}

// NewS3Fetcher creates a fetcher around an S3 client
func NewS3Fetcher(client S3API) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// NewS3FetcherFromConfig creates an S3 client from a loaded AWS config
func NewS3FetcherFromConfig(cfg aws.Config) *S3Fetcher {
	return NewS3Fetcher(s3.NewFromConfig(cfg))
}

// Fetch implements Fetcher
func (f *S3Fetcher) Fetch(ctx context.Context, ref types.ObjectRef) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get s3 object %s/%s", ref.Bucket, ref.Key)
	}
	defer out.Body.Close()

	return readAll(out.Body, f.MaxBytes, ref)
}
