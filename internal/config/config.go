package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Detection DetectionConfig `json:"detection"`
	AWS       AWSConfig       `json:"aws"`
	GCP       GCPConfig       `json:"gcp"`
	Render    RenderConfig    `json:"render"`
	Output    OutputConfig    `json:"output"`
}

// DetectionConfig selects and tunes the label backend
type DetectionConfig struct {
	Backend       string  `json:"backend"`
	MaxLabels     int     `json:"max_labels"`
	MinConfidence float64 `json:"min_confidence"`
	Model         string  `json:"model"`
	URL           string  `json:"url"`
	SendFormat    string  `json:"send_format"`
	SendSize      int     `json:"send_size"`
	SendQuality   int     `json:"send_quality"`
}

// AWSConfig holds settings for Rekognition and S3
type AWSConfig struct {
	Region  string `json:"region"`
	Profile string `json:"profile"`
}

// GCPConfig holds settings for Cloud Vision and Cloud Storage
type GCPConfig struct {
	CredentialsFile string `json:"credentials_file"`
}

// RenderConfig holds colors and sizes for the overlay
type RenderConfig struct {
	BoxColor     string  `json:"box_color"`
	TextColor    string  `json:"text_color"`
	CaptionColor string  `json:"caption_color"`
	CaptionAlpha float64 `json:"caption_alpha"`
	Stroke       int     `json:"stroke"`
	FontSize     float64 `json:"font_size"`
	Title        bool    `json:"title"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	OutputDir     string `json:"output_dir"`
	Prefix        string `json:"prefix"`
	Suffix        string `json:"suffix"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
	Crops         bool   `json:"crops"`
	WriteJSON     bool   `json:"write_json"`
}

// Backends lists the supported detection backends
var Backends = []string{"rekognition", "gcp", "ollama", "llamacpp"}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detection: DetectionConfig{
			Backend:       "rekognition",
			MaxLabels:     10,
			MinConfidence: 70,
			Model:         "openbmb/minicpm-v4.5",
			SendFormat:    "jpg",
			SendSize:      1536,
			SendQuality:   85,
		},
		Render: RenderConfig{
			BoxColor:     "#ff0000",
			TextColor:    "#ffffff",
			CaptionColor: "#ff0000",
			CaptionAlpha: 0.7,
			Title:        true,
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			OutputDir:     "./output",
			Prefix:        "",
			Suffix:        "_labels",
			Quality:       90,
			WriteJSON:     true,
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads .env files (missing files are ignored) and applies
// environment overrides
func (c *Config) LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	if v := os.Getenv("LABELVIZ_BACKEND"); v != "" {
		c.Detection.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("LABELVIZ_MODEL"); v != "" {
		c.Detection.Model = v
	}
	if v := os.Getenv("LABELVIZ_URL"); v != "" {
		c.Detection.URL = v
	}
	if v := os.Getenv("LABELVIZ_MAX_LABELS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LABELVIZ_MAX_LABELS: %w", err)
		}
		c.Detection.MaxLabels = n
	}
	if v := os.Getenv("LABELVIZ_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LABELVIZ_MIN_CONFIDENCE: %w", err)
		}
		c.Detection.MinConfidence = f
	}
	if v := os.Getenv("LABELVIZ_OUTPUT_DIR"); v != "" {
		c.Output.OutputDir = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.AWS.Region = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		c.AWS.Profile = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		c.GCP.CredentialsFile = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !isBackend(c.Detection.Backend) {
		return fmt.Errorf("detection.backend must be one of %s", strings.Join(Backends, ", "))
	}

	if c.Detection.MaxLabels < 1 {
		return fmt.Errorf("detection.max_labels must be positive")
	}

	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 100 {
		return fmt.Errorf("detection.min_confidence must be between 0 and 100")
	}

	if c.Render.CaptionAlpha < 0 || c.Render.CaptionAlpha > 1 {
		return fmt.Errorf("render.caption_alpha must be between 0 and 1")
	}

	for name, v := range map[string]string{
		"render.box_color":     c.Render.BoxColor,
		"render.text_color":    c.Render.TextColor,
		"render.caption_color": c.Render.CaptionColor,
	} {
		if _, err := ParseHexColor(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	switch strings.ToLower(c.Output.DefaultFormat) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.default_format must be jpg, png or webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// ParseHexColor parses #rgb or #rrggbb
func ParseHexColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 255}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(s) {
	case 3:
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return c, fmt.Errorf("invalid color %q", s)
		}
		c.R = uint8(v>>8&0xf) * 17
		c.G = uint8(v>>4&0xf) * 17
		c.B = uint8(v&0xf) * 17
	case 6:
		v, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return c, fmt.Errorf("invalid color %q", s)
		}
		c.R = uint8(v >> 16)
		c.G = uint8(v >> 8)
		c.B = uint8(v)
	default:
		return c, fmt.Errorf("invalid color %q", s)
	}
	return c, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "labelviz", "config.json")
}

func isBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
