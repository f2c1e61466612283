package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/labelviz"
	"github.com/menta2k/labelviz/internal/config"
	"github.com/menta2k/labelviz/pkg/detection"
	"github.com/menta2k/labelviz/pkg/processing"
	"github.com/menta2k/labelviz/pkg/types"
)

func TestResolveRef(t *testing.T) {
	ref, err := resolveRef(flags{})
	require.NoError(t, err)
	assert.Equal(t, "s3://"+defaultBucket+"/"+defaultKey, ref.URI)

	ref, err = resolveRef(flags{bucket: "photos", key: "cat.png", scheme: "gs"})
	require.NoError(t, err)
	assert.Equal(t, "gs", ref.Scheme)
	assert.Equal(t, "photos", ref.Bucket)

	ref, err = resolveRef(flags{in: "https://example.com/cat.jpg", bucket: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "https", ref.Scheme)

	_, err = resolveRef(flags{bucket: "photos"})
	assert.Error(t, err)
}

func TestVisualizerOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Render.BoxColor = "#00ff00"
	cfg.Output.Crops = true

	opts, err := visualizerOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, opts.Render.BoxColor)
	assert.Equal(t, 10, opts.MaxLabels)
	assert.True(t, opts.Crops)
	assert.Equal(t, "png", opts.Format)
}

func TestNewDetectorModelBackends(t *testing.T) {
	for _, backend := range []string{"ollama", "llamacpp"} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Detection.Backend = backend
			cl := &clients{cfg: cfg}
			defer cl.Close()

			d, model, err := cl.newDetector(context.Background())
			require.NoError(t, err)
			assert.Equal(t, backend, d.Name())
			assert.NotNil(t, model)
		})
	}
}

func TestNewDetectorUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Detection.Backend = "azure"
	cl := &clients{cfg: cfg}

	_, _, err := cl.newDetector(context.Background())
	assert.ErrorContains(t, err, "unknown backend")
}

func TestLoadConfigUsesEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LABELVIZ_BACKEND", "llamacpp")

	cfg, err := loadConfig(flags{envFile: "does-not-exist.env"})
	require.NoError(t, err)
	assert.Equal(t, "llamacpp", cfg.Detection.Backend)
}

type countingFetcher struct {
	data  []byte
	calls int
}

func (c *countingFetcher) Fetch(ctx context.Context, ref types.ObjectRef) ([]byte, error) {
	c.calls++
	return c.data, nil
}

type describingVision struct {
	queries int
}

func (d *describingVision) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	d.queries++
	return "a grey square\n", nil
}

func (d *describingVision) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) ([]types.Label, error) {
	return []types.Label{{Name: "Square", Confidence: 90}}, nil
}

func TestVisualizeFetchesOnceWhenDescribing(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	fetcher := &countingFetcher{data: buf.Bytes()}
	vc := &describingVision{}
	model := detection.NewModelBackend(vc, "llava", processing.NewProcessor(), detection.ModelSendOptions{})

	opts := labelviz.DefaultOptions()
	opts.OutputDir = t.TempDir()
	viz := labelviz.New(fetcher, detection.NewDetector("ollama", model), opts)
	viz.SetOutput(&bytes.Buffer{})

	ref, err := resolveRef(flags{in: "s3://bucket/square.png"})
	require.NoError(t, err)

	report, err := visualize(context.Background(), viz, model, ref, true)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, vc.queries)
	require.Len(t, report.Result.Labels, 1)
	assert.Equal(t, "Square", report.Result.Labels[0].Name)
}
