package store

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/menta2k/labelviz/pkg/types"
)

// FileFetcher reads objects from the local filesystem
type FileFetcher struct {
	MaxBytes int64
}

// Fetch implements Fetcher
func (f *FileFetcher) Fetch(ctx context.Context, ref types.ObjectRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(ref.Key)
	if err != nil {
		return nil, errors.Wrap(err, "open image file")
	}
	defer file.Close()

	return readAll(file, f.MaxBytes, ref)
}
