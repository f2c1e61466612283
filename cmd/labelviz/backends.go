package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"google.golang.org/api/option"

	"github.com/menta2k/labelviz/internal/config"
	"github.com/menta2k/labelviz/pkg/client"
	"github.com/menta2k/labelviz/pkg/detection"
	"github.com/menta2k/labelviz/pkg/gcvision"
	"github.com/menta2k/labelviz/pkg/llamacpp"
	"github.com/menta2k/labelviz/pkg/ollama"
	"github.com/menta2k/labelviz/pkg/processing"
	"github.com/menta2k/labelviz/pkg/rekognition"
	"github.com/menta2k/labelviz/pkg/store"
	"github.com/menta2k/labelviz/pkg/types"
)

// clients holds lazily created cloud clients and their cleanup
type clients struct {
	cfg     *config.Config
	aws     *aws.Config
	closers []func() error
}

func (c *clients) awsConfig(ctx context.Context) (aws.Config, error) {
	if c.aws != nil {
		return *c.aws, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if c.cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.cfg.AWS.Region))
	}
	if c.cfg.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.cfg.AWS.Profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	c.aws = &cfg
	return cfg, nil
}

func (c *clients) gcpOptions() []option.ClientOption {
	if c.cfg.GCP.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.cfg.GCP.CredentialsFile)}
}

func (c *clients) Close() {
	for _, closeFn := range c.closers {
		_ = closeFn()
	}
}

// newFetcher serves local files and HTTP always, and the cloud store the
// object lives in
func (c *clients) newFetcher(ctx context.Context, ref types.ObjectRef) (store.Fetcher, error) {
	router := store.NewRouter().
		Register(&store.FileFetcher{}, store.SchemeFile).
		Register(store.NewHTTPFetcher(), store.SchemeHTTP, store.SchemeHTTPS)

	switch ref.Scheme {
	case store.SchemeS3:
		cfg, err := c.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		router.Register(store.NewS3FetcherFromConfig(cfg), store.SchemeS3)
	case store.SchemeGCS:
		gcs, err := storage.NewClient(ctx, c.gcpOptions()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		c.closers = append(c.closers, gcs.Close)
		router.Register(store.NewGCSFetcher(gcs), store.SchemeGCS)
	}
	return router, nil
}

// newDetector builds the configured backend
func (c *clients) newDetector(ctx context.Context) (*detection.Detector, *detection.ModelBackend, error) {
	d := c.cfg.Detection
	send := detection.ModelSendOptions{Format: d.SendFormat, MaxDim: d.SendSize, Quality: d.SendQuality}

	var vc client.VisionClient
	switch d.Backend {
	case "rekognition":
		cfg, err := c.awsConfig(ctx)
		if err != nil {
			return nil, nil, err
		}
		return detection.NewDetector(d.Backend, rekognition.NewClientFromConfig(cfg)), nil, nil
	case "gcp":
		gc, closeFn, err := gcvision.Dial(ctx, c.gcpOptions()...)
		if err != nil {
			return nil, nil, err
		}
		c.closers = append(c.closers, closeFn)
		return detection.NewDetector(d.Backend, gc), nil, nil
	case "ollama":
		url := d.URL
		if url == "" {
			url = "http://localhost:11434/api/chat"
		}
		oc, err := ollama.NewClient(url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		vc = oc
	case "llamacpp":
		url := d.URL
		if url == "" {
			url = "http://localhost:8080"
		}
		lc, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		vc = lc
	default:
		return nil, nil, fmt.Errorf("unknown backend: %s", d.Backend)
	}

	mb := detection.NewModelBackend(vc, d.Model, processing.NewProcessor(), send)
	return detection.NewDetector(d.Backend, mb), mb, nil
}
