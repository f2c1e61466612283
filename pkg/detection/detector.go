package detection

import (
	"context"
	"fmt"
	"sort"

	"github.com/menta2k/labelviz/pkg/client"
	"github.com/menta2k/labelviz/pkg/types"
)

const (
	// DefaultMaxLabels is the number of labels kept when none is requested
	DefaultMaxLabels = 10
	// DefaultMinConfidence is the lowest label confidence (percent) kept
	DefaultMinConfidence = 70.0
)

// Detector runs a label backend and cleans up what it returns
type Detector struct {
	backend client.LabelDetector
	name    string
}

// NewDetector creates a new detector around a backend
func NewDetector(name string, backend client.LabelDetector) *Detector {
	return &Detector{backend: backend, name: name}
}

// Name returns the backend name
func (d *Detector) Name() string {
	return d.name
}

// Detect asks the backend for labels and post-processes the answer
func (d *Detector) Detect(ctx context.Context, req types.DetectRequest) ([]types.Label, error) {
	if req.MaxLabels <= 0 {
		req.MaxLabels = DefaultMaxLabels
	}
	if req.MinConfidence < 0 {
		req.MinConfidence = 0
	}

	labels, err := d.backend.DetectLabels(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s label detection failed: %w", d.name, err)
	}

	return PostProcess(labels, req), nil
}

// PostProcess clips fractional boxes to the image, drops empty instances
// and weak labels, orders by confidence and applies the label limit.
// Backends hand in fractional boxes; pixel conversion is theirs to do.
func PostProcess(labels []types.Label, req types.DetectRequest) []types.Label {
	out := make([]types.Label, 0, len(labels))
	for _, l := range labels {
		if l.Confidence < req.MinConfidence {
			continue
		}

		instances := make([]types.Instance, 0, len(l.Instances))
		for _, in := range l.Instances {
			in.Box = clipBox(in.Box)
			if in.Box.Area() == 0 {
				continue
			}
			instances = append(instances, in)
		}
		l.Instances = instances
		if len(l.Instances) == 0 {
			l.Instances = nil
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})

	if req.MaxLabels > 0 && len(out) > req.MaxLabels {
		out = out[:req.MaxLabels]
	}
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clipBox clips a fractional box to [0,1]
func clipBox(b types.Box) types.Box {
	x0 := clamp(b.X, 0, 1)
	y0 := clamp(b.Y, 0, 1)
	x1 := clamp(b.X+b.W, 0, 1)
	y1 := clamp(b.Y+b.H, 0, 1)
	if x1 <= x0 || y1 <= y0 {
		return types.Box{X: x0, Y: y0}
	}
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
