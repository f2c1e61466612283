package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/labelviz/pkg/types"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		in      string
		want    types.ObjectRef
		wantErr error
	}{
		{
			in:   "s3://rekognition-image-bucket/random.jpg",
			want: types.ObjectRef{URI: "s3://rekognition-image-bucket/random.jpg", Scheme: "s3", Bucket: "rekognition-image-bucket", Key: "random.jpg"},
		},
		{
			in:   "gs://photos/2024/beach.png",
			want: types.ObjectRef{URI: "gs://photos/2024/beach.png", Scheme: "gs", Bucket: "photos", Key: "2024/beach.png"},
		},
		{
			in:   "https://example.com/img/cat.jpg",
			want: types.ObjectRef{URI: "https://example.com/img/cat.jpg", Scheme: "https", Bucket: "example.com", Key: "img/cat.jpg"},
		},
		{
			in:   "testdata/cat.jpg",
			want: types.ObjectRef{URI: "testdata/cat.jpg", Scheme: "file", Bucket: "testdata", Key: "testdata/cat.jpg"},
		},
		{
			in:   "file:///tmp/cat.jpg",
			want: types.ObjectRef{URI: "file:///tmp/cat.jpg", Scheme: "file", Bucket: "/tmp", Key: "/tmp/cat.jpg"},
		},
		{in: "", wantErr: ErrInvalidURI},
		{in: "s3://bucket-only", wantErr: ErrInvalidURI},
		{in: "s3:///key.jpg", wantErr: ErrInvalidURI},
		{in: "ftp://host/file.jpg", wantErr: ErrUnsupportedScheme},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseURI(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRef(t *testing.T) {
	ref, err := NewRef("", "bucket", "/dir/key.jpg")
	require.NoError(t, err)
	assert.Equal(t, "s3", ref.Scheme)
	assert.Equal(t, "dir/key.jpg", ref.Key)

	_, err = NewRef("gs", "", "key.jpg")
	assert.ErrorIs(t, err, ErrInvalidURI)
}

type fakeFetcher struct {
	data []byte
	refs []types.ObjectRef
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref types.ObjectRef) ([]byte, error) {
	f.refs = append(f.refs, ref)
	return f.data, nil
}

func TestRouter(t *testing.T) {
	s3f := &fakeFetcher{data: []byte("s3")}
	r := NewRouter().Register(s3f, SchemeS3)

	data, err := r.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeS3, Bucket: "b", Key: "k"})
	require.NoError(t, err)
	assert.Equal(t, []byte("s3"), data)
	assert.Len(t, s3f.refs, 1)

	_, err = r.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeGCS})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.bin")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o644))

	f := &FileFetcher{}
	data, err := f.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeFile, Key: path, URI: path})
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), data)

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = f.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeFile, Key: empty, URI: empty})
	assert.ErrorIs(t, err, ErrEmptyObject)

	small := &FileFetcher{MaxBytes: 3}
	_, err = small.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeFile, Key: path, URI: path})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = f.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeFile, Key: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/cat.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	fetch := func(path string) ([]byte, error) {
		ref, err := ParseURI(srv.URL + path)
		require.NoError(t, err)
		return f.Fetch(context.Background(), ref)
	}

	data, err := fetch("/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	_, err = fetch("/page.html")
	assert.ErrorContains(t, err, "Content-Type")

	_, err = fetch("/missing.jpg")
	assert.ErrorContains(t, err, "404")
}

type fakeS3 struct {
	body  string
	err   error
	input *s3.GetObjectInput
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Fetcher(t *testing.T) {
	api := &fakeS3{body: "object-bytes"}
	f := NewS3Fetcher(api)

	data, err := f.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeS3, Bucket: "bucket", Key: "random.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []byte("object-bytes"), data)
	assert.Equal(t, "bucket", *api.input.Bucket)
	assert.Equal(t, "random.jpg", *api.input.Key)

	api.err = errors.New("AccessDenied")
	_, err = f.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeS3, Bucket: "bucket", Key: "random.jpg"})
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestGCSFetcher(t *testing.T) {
	var gotBucket, gotKey string
	f := NewGCSFetcherWithOpener(func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		gotBucket, gotKey = bucket, key
		return io.NopCloser(bytes.NewReader([]byte("gcs-bytes"))), nil
	})

	data, err := f.Fetch(context.Background(), types.ObjectRef{Scheme: SchemeGCS, Bucket: "photos", Key: "a/b.png"})
	require.NoError(t, err)
	assert.Equal(t, []byte("gcs-bytes"), data)
	assert.Equal(t, "photos", gotBucket)
	assert.Equal(t, "a/b.png", gotKey)
}
