package client

import (
	"context"

	"github.com/menta2k/labelviz/pkg/types"
)

// LabelDetector is implemented by every detection backend
type LabelDetector interface {
	DetectLabels(ctx context.Context, req types.DetectRequest) ([]types.Label, error)
}

type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) ([]types.Label, error)
}
