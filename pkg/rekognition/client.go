// Package rekognition detects labels with Amazon Rekognition.
package rekognition

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rtypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/menta2k/labelviz/pkg/types"
)

// API is the part of the Rekognition client the detector uses
type API interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Client detects labels with Rekognition
type Client struct {
	api API
}

// NewClient wraps a Rekognition API client
func NewClient(api API) *Client {
	return &Client{api: api}
}

// NewClientFromConfig creates a Rekognition client from a loaded AWS config
func NewClientFromConfig(cfg aws.Config) *Client {
	return NewClient(rekognition.NewFromConfig(cfg))
}

// DetectLabels references S3 objects in place and sends bytes otherwise
func (c *Client) DetectLabels(ctx context.Context, req types.DetectRequest) ([]types.Label, error) {
	input := &rekognition.DetectLabelsInput{
		Image:         buildImage(req),
		MinConfidence: aws.Float32(float32(req.MinConfidence)),
	}
	if input.Image == nil {
		return nil, fmt.Errorf("rekognition needs an s3 object or image bytes")
	}
	if req.MaxLabels > 0 {
		input.MaxLabels = aws.Int32(int32(req.MaxLabels))
	}

	out, err := c.api.DetectLabels(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectLabels: %w", err)
	}

	return convertLabels(out.Labels), nil
}

func buildImage(req types.DetectRequest) *rtypes.Image {
	if req.Object.Scheme == "s3" && req.Object.Bucket != "" && req.Object.Key != "" {
		return &rtypes.Image{
			S3Object: &rtypes.S3Object{
				Bucket: aws.String(req.Object.Bucket),
				Name:   aws.String(req.Object.Key),
			},
		}
	}
	if len(req.Image) > 0 {
		return &rtypes.Image{Bytes: req.Image}
	}
	return nil
}

func convertLabels(in []rtypes.Label) []types.Label {
	labels := make([]types.Label, 0, len(in))
	for _, l := range in {
		label := types.Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		}
		for _, inst := range l.Instances {
			if inst.BoundingBox == nil {
				continue
			}
			bb := inst.BoundingBox
			label.Instances = append(label.Instances, types.Instance{
				Box: types.Box{
					X: float64(aws.ToFloat32(bb.Left)),
					Y: float64(aws.ToFloat32(bb.Top)),
					W: float64(aws.ToFloat32(bb.Width)),
					H: float64(aws.ToFloat32(bb.Height)),
				},
				Confidence: float64(aws.ToFloat32(inst.Confidence)),
			})
		}
		for _, p := range l.Parents {
			if name := aws.ToString(p.Name); name != "" {
				label.Parents = append(label.Parents, name)
			}
		}
		labels = append(labels, label)
	}
	return labels
}
