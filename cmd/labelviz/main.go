package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/menta2k/labelviz"
	"github.com/menta2k/labelviz/internal/config"
	"github.com/menta2k/labelviz/internal/utils"
	"github.com/menta2k/labelviz/pkg/detection"
	"github.com/menta2k/labelviz/pkg/store"
	"github.com/menta2k/labelviz/pkg/types"
)

// Demo object used when neither -in nor -bucket/-key is given
const (
	defaultBucket = "rekognition-image-bucket-x7a9kf3"
	defaultKey    = "random.jpg"
)

type flags struct {
	in, bucket, key, scheme string
	configPath, envFile     string
	dumpConfig              bool
	saveConfig              string

	backend, region, url, model string
	maxLabels                   int
	minConfidence               float64

	outDir, ext string
	quality     int
	lossless    bool
	crops       bool
	noTitle     bool
	probe       bool
}

func main() {
	var f flags

	flag.StringVar(&f.in, "in", "", "image location: s3://bucket/key, gs://bucket/key, http(s) URL or file path")
	flag.StringVar(&f.bucket, "bucket", "", "bucket holding the image (with -key)")
	flag.StringVar(&f.key, "key", "", "object key of the image (with -bucket)")
	flag.StringVar(&f.scheme, "scheme", "s3", "object store for -bucket/-key: s3 or gs")

	flag.StringVar(&f.configPath, "config", "", "JSON config file (default "+config.GetConfigPath()+" when present)")
	flag.StringVar(&f.envFile, "env", ".env", "env file with LABELVIZ_* overrides")
	flag.BoolVar(&f.dumpConfig, "dump-config", false, "print the effective config as JSON and exit")
	flag.StringVar(&f.saveConfig, "save-config", "", "write the effective config to this file and exit")

	flag.StringVar(&f.backend, "backend", "", "label backend: "+strings.Join(config.Backends, "|"))
	flag.StringVar(&f.region, "region", "", "AWS region for rekognition and s3")
	flag.StringVar(&f.url, "url", "", "server URL for ollama/llamacpp")
	flag.StringVar(&f.model, "model", "", "model name for ollama/llamacpp")
	flag.IntVar(&f.maxLabels, "max-labels", 0, "maximum number of labels to return")
	flag.Float64Var(&f.minConfidence, "min-confidence", 0, "minimum label confidence in percent")

	flag.StringVar(&f.outDir, "out", "", "output directory")
	flag.StringVar(&f.ext, "ext", "", "overlay format: png|jpg|webp")
	flag.IntVar(&f.quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&f.lossless, "lossless", false, "WebP output lossless mode")
	flag.BoolVar(&f.crops, "crops", false, "also write one image per located instance")
	flag.BoolVar(&f.noTitle, "no-title", false, "omit the title banner")
	flag.BoolVar(&f.probe, "probe", false, "ask vision model backends to describe the image first")

	flag.Parse()

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatal(err)
	}

	if f.dumpConfig {
		if err := dumpConfig(cfg); err != nil {
			log.Fatal(err)
		}
		return
	}
	if f.saveConfig != "" {
		if err := cfg.SaveToFile(f.saveConfig); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", f.saveConfig)
		return
	}

	ref, err := resolveRef(f)
	if err != nil {
		log.Fatalf("%v\nusage: %s -in s3://bucket/key | -bucket b -key k [-backend rekognition|gcp|ollama|llamacpp] [-out dir]", err, filepath.Base(os.Args[0]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, ref, f.probe); err != nil {
		fmt.Printf("An error occurred: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, ref types.ObjectRef, probe bool) error {
	cl := &clients{cfg: cfg}
	defer cl.Close()

	fetcher, err := cl.newFetcher(ctx, ref)
	if err != nil {
		return err
	}
	detector, model, err := cl.newDetector(ctx)
	if err != nil {
		return err
	}

	opts, err := visualizerOptions(cfg)
	if err != nil {
		return err
	}

	viz := labelviz.New(fetcher, detector, opts)
	report, err := visualize(ctx, viz, model, ref, probe)
	if err != nil {
		return err
	}

	log.Printf("overlay: %s", report.OverlayPath)
	for _, p := range report.CropPaths {
		log.Printf("crop: %s", p)
	}
	return nil
}

// visualize fetches the object once, lets a vision model describe it when
// probe is set, then detects and draws
func visualize(ctx context.Context, viz *labelviz.Visualizer, model *detection.ModelBackend, ref types.ObjectRef, probe bool) (*labelviz.Report, error) {
	data, err := viz.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	if probe && model != nil {
		desc, err := model.TestVision(ctx, types.DetectRequest{Object: ref, Image: data})
		if err != nil {
			return nil, fmt.Errorf("vision probe failed: %w", err)
		}
		log.Printf("model sees: %s", strings.TrimSpace(desc))
	}

	return viz.DetectAndVisualizeData(ctx, ref, data)
}

// loadConfig layers defaults, the config file, the env file and flags
func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()

	path := f.configPath
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.LoadEnv(f.envFile); err != nil {
		return nil, err
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend":
			cfg.Detection.Backend = strings.ToLower(f.backend)
		case "region":
			cfg.AWS.Region = f.region
		case "url":
			cfg.Detection.URL = f.url
		case "model":
			cfg.Detection.Model = f.model
		case "max-labels":
			cfg.Detection.MaxLabels = f.maxLabels
		case "min-confidence":
			cfg.Detection.MinConfidence = f.minConfidence
		case "out":
			cfg.Output.OutputDir = f.outDir
		case "ext":
			cfg.Output.DefaultFormat = strings.ToLower(f.ext)
		case "quality":
			cfg.Output.Quality = f.quality
		case "lossless":
			cfg.Output.Lossless = f.lossless
		case "crops":
			cfg.Output.Crops = f.crops
		case "no-title":
			cfg.Render.Title = !f.noTitle
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func dumpConfig(cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func resolveRef(f flags) (types.ObjectRef, error) {
	switch {
	case f.in != "":
		return store.ParseURI(f.in)
	case f.bucket != "" || f.key != "":
		return store.NewRef(f.scheme, f.bucket, f.key)
	default:
		return store.NewRef(store.SchemeS3, defaultBucket, defaultKey)
	}
}

func visualizerOptions(cfg *config.Config) (labelviz.Options, error) {
	opts := labelviz.DefaultOptions()
	opts.MaxLabels = cfg.Detection.MaxLabels
	opts.MinConfidence = cfg.Detection.MinConfidence
	opts.OutputDir = cfg.Output.OutputDir
	opts.Format = cfg.Output.DefaultFormat
	opts.Quality = cfg.Output.Quality
	opts.Lossless = cfg.Output.Lossless
	opts.Prefix = cfg.Output.Prefix
	opts.Suffix = cfg.Output.Suffix
	opts.Crops = cfg.Output.Crops
	opts.WriteJSON = cfg.Output.WriteJSON
	opts.Title = cfg.Render.Title

	var err error
	if opts.Render.BoxColor, err = config.ParseHexColor(cfg.Render.BoxColor); err != nil {
		return opts, err
	}
	if opts.Render.TextColor, err = config.ParseHexColor(cfg.Render.TextColor); err != nil {
		return opts, err
	}
	if opts.Render.CaptionColor, err = config.ParseHexColor(cfg.Render.CaptionColor); err != nil {
		return opts, err
	}
	opts.Render.CaptionAlpha = cfg.Render.CaptionAlpha
	opts.Render.Stroke = cfg.Render.Stroke
	opts.Render.FontSize = cfg.Render.FontSize
	return opts, nil
}
