package detection

import (
	"context"
	"errors"
	"fmt"

	"github.com/menta2k/labelviz/pkg/client"
	"github.com/menta2k/labelviz/pkg/processing"
	"github.com/menta2k/labelviz/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks a vision model for a Rekognition-style label list.
// The single %d is the label limit.
const DefaultPrompt = `You are an image labeler.

Return JSON only:
{
  "labels": [
    {
      "name": "string",
      "confidence": 0.0,
      "parents": ["string"],
      "instances": [
        {"box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}, "confidence": 0.0}
      ]
    }
  ]
}

HARD RULES
- Return at most %d labels, most confident first.
- Confidence is a percentage between 0 and 100.
- Box coordinates are normalized to [0,1] (NOT pixels): x is left, y is top, w is width, h is height.
- Add one instance per visible, countable object. Scene or concept labels ("outdoors", "nature") have no instances.
- parents lists broader categories of the label, or is empty.
- Names are short English nouns with a leading capital letter. Do not guess real identities.
- If nothing is recognizable, return {"labels": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// ModelSendOptions controls the image sent to a local vision model
type ModelSendOptions struct {
	Format  string
	MaxDim  int
	Quality int
}

// ModelBackend adapts a prompt-driven vision model to LabelDetector
type ModelBackend struct {
	client    client.VisionClient
	model     string
	processor *processing.Processor
	send      ModelSendOptions
}

// NewModelBackend wraps a vision client
func NewModelBackend(c client.VisionClient, model string, processor *processing.Processor, send ModelSendOptions) *ModelBackend {
	if send.Format == "" {
		send.Format = "jpg"
	}
	if send.Quality <= 0 {
		send.Quality = 85
	}
	return &ModelBackend{client: c, model: model, processor: processor, send: send}
}

// DetectLabels sends the fetched image to the model. Boxes the model
// answers in pixels are converted against the image that was sent.
func (m *ModelBackend) DetectLabels(ctx context.Context, req types.DetectRequest) ([]types.Label, error) {
	imgB64, w, h, err := m.encode(req)
	if err != nil {
		return nil, err
	}

	limit := req.MaxLabels
	if limit <= 0 {
		limit = DefaultMaxLabels
	}
	labels, err := m.client.AnalyzeImage(ctx, m.model, fmt.Sprintf(DefaultPrompt, limit), imgB64)
	if err != nil {
		return nil, err
	}
	return PixelsToFractions(labels, w, h), nil
}

// TestVision checks that the model can see the image at all
func (m *ModelBackend) TestVision(ctx context.Context, req types.DetectRequest) (string, error) {
	imgB64, _, _, err := m.encode(req)
	if err != nil {
		return "", err
	}
	return m.client.SimpleQuery(ctx, m.model, SimpleTestPrompt, imgB64)
}

// encode returns the payload and the size of the image actually sent
func (m *ModelBackend) encode(req types.DetectRequest) (string, int, int, error) {
	if len(req.Image) == 0 {
		return "", 0, 0, errors.New("vision model backends need the image bytes")
	}
	img, err := m.processor.Decode(req.Image)
	if err != nil {
		return "", 0, 0, err
	}
	img = m.processor.FitForModel(img, m.send.MaxDim)
	b := img.Bounds()

	imgB64, err := m.processor.PrepareImageForModel(img, m.send.Format, 0, m.send.Quality)
	if err != nil {
		return "", 0, 0, err
	}
	return imgB64, b.Dx(), b.Dy(), nil
}

// PixelsToFractions converts instance boxes given in pixels of a w x h
// image to fractions. Boxes already within [0,1] are left alone.
func PixelsToFractions(labels []types.Label, w, h int) []types.Label {
	if w <= 0 || h <= 0 {
		return labels
	}
	for i := range labels {
		for j := range labels[i].Instances {
			b := labels[i].Instances[j].Box
			if b.X <= 1 && b.Y <= 1 && b.W <= 1 && b.H <= 1 {
				continue
			}
			labels[i].Instances[j].Box = types.Box{
				X: b.X / float64(w),
				Y: b.Y / float64(h),
				W: b.W / float64(w),
				H: b.H / float64(h),
			}
		}
	}
	return labels
}
