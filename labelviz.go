// Package labelviz detects labels in an image held in object storage and
// draws the located instances on top of it.
//
// Basic usage:
//
//	fetcher := store.NewRouter().
//		Register(store.NewS3FetcherFromConfig(awsCfg), store.SchemeS3)
//	detector := detection.NewDetector("rekognition", rekognition.NewClientFromConfig(awsCfg))
//
//	viz := labelviz.New(fetcher, detector, labelviz.DefaultOptions())
//	report, err := viz.DetectAndVisualize(ctx, "s3://my-bucket/random.jpg")
//	if err != nil {
//		fmt.Printf("An error occurred: %v\n", err)
//		return
//	}
//	fmt.Println(report.OverlayPath)
//
// One run performs, in order: fetching the object, label detection (by
// reference when the backend reads the store directly, otherwise from the
// fetched bytes), scaling each instance's fractional box to pixels and
// drawing it with a "<Name> (<confidence>%)" caption, then writing the
// annotated image.
package labelviz

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/labelviz/internal/utils"
	"github.com/menta2k/labelviz/pkg/detection"
	"github.com/menta2k/labelviz/pkg/processing"
	"github.com/menta2k/labelviz/pkg/store"
	"github.com/menta2k/labelviz/pkg/types"
)

// Version of the label visualizer
const Version = "1.0.0"

// Options controls detection limits and output files
type Options struct {
	MaxLabels     int
	MinConfidence float64

	OutputDir string
	Format    string
	Quality   int
	Lossless  bool
	Prefix    string
	Suffix    string
	Crops     bool
	WriteJSON bool

	Render types.RenderOptions
	Title  bool
}

// DefaultOptions returns the options of the classic demo run
func DefaultOptions() Options {
	return Options{
		MaxLabels:     detection.DefaultMaxLabels,
		MinConfidence: detection.DefaultMinConfidence,
		OutputDir:     "output",
		Format:        "png",
		Quality:       90,
		Suffix:        "_labels",
		WriteJSON:     true,
		Render:        processing.DefaultRenderOptions(),
		Title:         true,
	}
}

// Report describes what one run produced
type Report struct {
	Result      types.DetectionResult
	OverlayPath string
	CropPaths   []string
	JSONPath    string
}

// Visualizer wires a fetcher, a detector and the overlay renderer
type Visualizer struct {
	fetcher   store.Fetcher
	detector  *detection.Detector
	processor *processing.Processor
	opts      Options
	out       io.Writer
}

// New creates a Visualizer printing its label listing to stdout
func New(fetcher store.Fetcher, detector *detection.Detector, opts Options) *Visualizer {
	return &Visualizer{
		fetcher:   fetcher,
		detector:  detector,
		processor: processing.NewProcessor(),
		opts:      opts,
		out:       os.Stdout,
	}
}

// SetOutput redirects the label listing
func (v *Visualizer) SetOutput(w io.Writer) {
	v.out = w
}

// DetectAndVisualize parses uri and runs DetectAndVisualizeObject
func (v *Visualizer) DetectAndVisualize(ctx context.Context, uri string) (*Report, error) {
	ref, err := store.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return v.DetectAndVisualizeObject(ctx, ref)
}

// DetectAndVisualizeObject fetches one object, runs detection and writes
// the annotated image
func (v *Visualizer) DetectAndVisualizeObject(ctx context.Context, ref types.ObjectRef) (*Report, error) {
	data, err := v.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return v.DetectAndVisualizeData(ctx, ref, data)
}

// Fetch downloads the object through the visualizer's fetcher
func (v *Visualizer) Fetch(ctx context.Context, ref types.ObjectRef) ([]byte, error) {
	log.Printf("Downloading image '%s' from %s...", ref.Key, ref.URI)
	data, err := v.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	log.Printf("fetched %s", utils.FormatFileSize(int64(len(data))))
	return data, nil
}

// DetectAndVisualizeData runs detection on already fetched bytes of ref and
// writes the annotated image
func (v *Visualizer) DetectAndVisualizeData(ctx context.Context, ref types.ObjectRef, data []byte) (*Report, error) {
	img, err := v.processor.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	bounds := img.Bounds()

	log.Printf("Detecting labels for '%s' in bucket '%s'...", ref.Key, ref.Bucket)
	labels, err := v.detector.Detect(ctx, types.DetectRequest{
		Object:        ref,
		Image:         data,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		MaxLabels:     v.opts.MaxLabels,
		MinConfidence: v.opts.MinConfidence,
	})
	if err != nil {
		return nil, err
	}
	PrintLabels(v.out, labels)

	report := &Report{
		Result: types.DetectionResult{
			Source:  ref.URI,
			Backend: v.detector.Name(),
			Width:   bounds.Dx(),
			Height:  bounds.Dy(),
			Labels:  labels,
		},
	}

	if err := utils.EnsureDir(v.opts.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	annotated := v.processor.Annotate(img, labels, v.opts.Render)
	if v.opts.Title {
		annotated = v.processor.AddTitle(annotated, "Image Analysis: "+ref.Key, v.opts.Render.FontSize)
	}

	format := strings.ToLower(v.opts.Format)
	report.OverlayPath = utils.GenerateOutputFilename(ref.Key, v.opts.OutputDir, v.opts.Prefix, v.opts.Suffix, format)
	if err := v.processor.SaveImage(annotated, report.OverlayPath, format, v.opts.Quality, v.opts.Lossless); err != nil {
		return nil, fmt.Errorf("failed to save overlay: %w", err)
	}
	log.Printf("wrote %s", report.OverlayPath)

	if v.opts.Crops {
		paths, err := v.saveCrops(img, ref, labels, format)
		if err != nil {
			return nil, err
		}
		report.CropPaths = paths
	}

	if v.opts.WriteJSON {
		report.JSONPath = utils.GenerateOutputFilename(ref.Key, v.opts.OutputDir, v.opts.Prefix, v.opts.Suffix, "json")
		js, err := json.MarshalIndent(report.Result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode labels: %w", err)
		}
		if err := os.WriteFile(report.JSONPath, js, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write labels: %w", err)
		}
		log.Printf("wrote %s", report.JSONPath)
	}

	return report, nil
}

// saveCrops writes one image per located instance
func (v *Visualizer) saveCrops(img image.Image, ref types.ObjectRef, labels []types.Label, format string) ([]string, error) {
	var paths []string
	n := 0
	for _, l := range labels {
		for _, inst := range l.Instances {
			n++
			crop, err := v.processor.CropImageToBox(img, inst.Box, 0, 0)
			if err != nil {
				log.Printf("crop %s #%d skipped: %v", l.Name, n, err)
				continue
			}
			path := filepath.Join(v.opts.OutputDir, fmt.Sprintf("%s.%s", cropName(ref, l.Name, n), format))
			if err := v.processor.SaveImage(crop, path, format, v.opts.Quality, v.opts.Lossless); err != nil {
				return paths, fmt.Errorf("failed to save crop %s: %w", path, err)
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// PrintLabels writes the label listing
func PrintLabels(w io.Writer, labels []types.Label) {
	fmt.Fprintf(w, "Detected %d labels:\n", len(labels))
	for _, l := range labels {
		line := fmt.Sprintf("  - %s (Confidence: %.2f%%)", l.Name, l.Confidence)
		if len(l.Parents) > 0 {
			line += fmt.Sprintf(" [parents: %s]", strings.Join(l.Parents, ", "))
		}
		fmt.Fprintln(w, line)
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func cropName(ref types.ObjectRef, label string, i int) string {
	return fmt.Sprintf("%s_%02d_%s", utils.SanitizeFilename(utils.BaseName(ref.Key)), i, utils.SanitizeFilename(label))
}
