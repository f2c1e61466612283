// Package store fetches image objects from object storage, HTTP or disk.
package store

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/menta2k/labelviz/pkg/types"
)

// DefaultMaxBytes caps the size of a fetched object
const DefaultMaxBytes = 50 << 20

const (
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeFile  = "file"
)

var (
	// ErrInvalidURI is returned for locations missing a bucket or key
	ErrInvalidURI = errors.New("invalid object uri")
	// ErrUnsupportedScheme is returned when no fetcher serves a scheme
	ErrUnsupportedScheme = errors.New("unsupported object scheme")
	// ErrEmptyObject is returned for zero-length objects
	ErrEmptyObject = errors.New("object is empty")
	// ErrTooLarge is returned when an object exceeds the size cap
	ErrTooLarge = errors.New("object exceeds size limit")
)

// Fetcher reads a whole object into memory
type Fetcher interface {
	Fetch(ctx context.Context, ref types.ObjectRef) ([]byte, error)
}

// ParseURI parses s3://bucket/key, gs://bucket/key, http(s) URLs and local
// paths (with or without file://)
func ParseURI(s string) (types.ObjectRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.ObjectRef{}, errors.Wrap(ErrInvalidURI, "empty location")
	}

	scheme := ""
	if i := strings.Index(s, "://"); i > 0 {
		scheme = strings.ToLower(s[:i])
	}

	switch scheme {
	case SchemeS3, SchemeGCS:
		rest := s[len(scheme)+3:]
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return types.ObjectRef{}, errors.Wrapf(ErrInvalidURI, "%q needs a bucket and a key", s)
		}
		return types.ObjectRef{URI: s, Scheme: scheme, Bucket: bucket, Key: key}, nil
	case SchemeHTTP, SchemeHTTPS:
		u, err := url.Parse(s)
		if err != nil {
			return types.ObjectRef{}, errors.Wrapf(ErrInvalidURI, "%q: %v", s, err)
		}
		if u.Host == "" {
			return types.ObjectRef{}, errors.Wrapf(ErrInvalidURI, "%q has no host", s)
		}
		return types.ObjectRef{URI: s, Scheme: scheme, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
	case SchemeFile, "":
		path := s
		if scheme == SchemeFile {
			path = s[len(SchemeFile)+3:]
		}
		if path == "" {
			return types.ObjectRef{}, errors.Wrapf(ErrInvalidURI, "%q has no path", s)
		}
		return types.ObjectRef{URI: s, Scheme: SchemeFile, Bucket: filepath.Dir(path), Key: path}, nil
	default:
		return types.ObjectRef{}, errors.Wrapf(ErrUnsupportedScheme, "%q", scheme)
	}
}

// NewRef builds a reference from a bucket and key as the original two
// arguments (bucket name, image key) of the tool
func NewRef(scheme, bucket, key string) (types.ObjectRef, error) {
	if bucket == "" || key == "" {
		return types.ObjectRef{}, errors.Wrap(ErrInvalidURI, "bucket and key are required")
	}
	if scheme == "" {
		scheme = SchemeS3
	}
	return ParseURI(scheme + "://" + bucket + "/" + strings.TrimPrefix(key, "/"))
}

// Router dispatches fetches by scheme
type Router struct {
	fetchers map[string]Fetcher
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{fetchers: map[string]Fetcher{}}
}

// Register serves the given schemes with f
func (r *Router) Register(f Fetcher, schemes ...string) *Router {
	for _, s := range schemes {
		r.fetchers[s] = f
	}
	return r
}

// Fetch implements Fetcher
func (r *Router) Fetch(ctx context.Context, ref types.ObjectRef) ([]byte, error) {
	f, ok := r.fetchers[ref.Scheme]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "no fetcher for %q", ref.Scheme)
	}
	return f.Fetch(ctx, ref)
}

// readAll reads at most maxBytes bytes from r and fails on empty or oversized objects
func readAll(r io.Reader, maxBytes int64, ref types.ObjectRef) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", ref.URI)
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.Wrapf(ErrTooLarge, "%s is larger than %d bytes", ref.URI, maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.Wrapf(ErrEmptyObject, "%s", ref.URI)
	}
	return data, nil
}
