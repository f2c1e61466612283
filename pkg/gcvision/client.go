// Package gcvision detects labels with the Google Cloud Vision API.
package gcvision

import (
	"context"
	"fmt"
	"math"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/menta2k/labelviz/pkg/types"
)

// API is the part of the image annotator client the detector uses
type API interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// Client detects labels and localizes objects with Cloud Vision
type Client struct {
	api API
}

// NewClient wraps an image annotator
func NewClient(api API) *Client {
	return &Client{api: api}
}

// Dial creates an image annotator client. The caller closes it.
func Dial(ctx context.Context, opts ...option.ClientOption) (*Client, func() error, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create vision client: %w", err)
	}
	return NewClient(c), c.Close, nil
}

// DetectLabels references gs:// objects in place and sends bytes otherwise.
// Localized objects are merged into the label of the same name.
func (c *Client) DetectLabels(ctx context.Context, req types.DetectRequest) ([]types.Label, error) {
	img := buildImage(req)
	if img == nil {
		return nil, fmt.Errorf("cloud vision needs a gs:// object or image bytes")
	}

	limit := int32(req.MaxLabels)
	resp, err := c.api.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: img,
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: limit},
					{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: limit},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cloud vision annotate: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, fmt.Errorf("cloud vision returned no responses")
	}

	r := resp.GetResponses()[0]
	if msg := r.GetError().GetMessage(); msg != "" {
		return nil, fmt.Errorf("cloud vision: %s", msg)
	}

	return mergeAnnotations(r.GetLabelAnnotations(), r.GetLocalizedObjectAnnotations()), nil
}

func buildImage(req types.DetectRequest) *visionpb.Image {
	if req.Object.Scheme == "gs" && req.Object.Bucket != "" && req.Object.Key != "" {
		return &visionpb.Image{
			Source: &visionpb.ImageSource{
				GcsImageUri: "gs://" + req.Object.Bucket + "/" + req.Object.Key,
			},
		}
	}
	if len(req.Image) > 0 {
		return &visionpb.Image{Content: req.Image}
	}
	return nil
}

func mergeAnnotations(entities []*visionpb.EntityAnnotation, objects []*visionpb.LocalizedObjectAnnotation) []types.Label {
	labels := make([]types.Label, 0, len(entities)+len(objects))
	index := map[string]int{}

	for _, e := range entities {
		name := e.GetDescription()
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(labels)
		labels = append(labels, types.Label{Name: name, Confidence: percent(e.GetScore())})
	}

	for _, o := range objects {
		box, ok := polyBox(o.GetBoundingPoly().GetNormalizedVertices())
		if !ok {
			continue
		}
		inst := types.Instance{Box: box, Confidence: percent(o.GetScore())}

		key := strings.ToLower(o.GetName())
		i, found := index[key]
		if !found {
			index[key] = len(labels)
			labels = append(labels, types.Label{Name: o.GetName(), Confidence: inst.Confidence})
			i = len(labels) - 1
		}
		labels[i].Instances = append(labels[i].Instances, inst)
		if inst.Confidence > labels[i].Confidence {
			labels[i].Confidence = inst.Confidence
		}
	}

	return labels
}

// polyBox returns the axis-aligned box around normalized vertices
func polyBox(vs []*visionpb.NormalizedVertex) (types.Box, bool) {
	if len(vs) == 0 {
		return types.Box{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range vs {
		x, y := float64(v.GetX()), float64(v.GetY())
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return types.Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}, true
}

func percent(score float32) float64 {
	return float64(score) * 100
}
