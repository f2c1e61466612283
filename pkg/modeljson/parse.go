// Package modeljson turns free-form vision model replies into label lists.
package modeljson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/labelviz/pkg/types"
)

// ErrNoJSON is returned when a model reply carries no JSON object
var ErrNoJSON = errors.New("no json object in model response")

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

type reply struct {
	Labels []types.Label `json:"labels"`
}

// ParseLabels parses the model reply. Confidences given as fractions in
// (0,1] are converted to percentages.
func ParseLabels(raw string) ([]types.Label, error) {
	raw = Sanitize(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, ErrNoJSON
	}

	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	fractional := true
	for _, l := range r.Labels {
		if l.Confidence > 1 {
			fractional = false
			break
		}
		for _, in := range l.Instances {
			if in.Confidence > 1 {
				fractional = false
				break
			}
		}
	}
	if fractional {
		for i := range r.Labels {
			r.Labels[i].Confidence *= 100
			for j := range r.Labels[i].Instances {
				r.Labels[i].Instances[j].Confidence *= 100
			}
		}
	}

	out := r.Labels[:0]
	for _, l := range r.Labels {
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			continue
		}
		for j := range l.Instances {
			if l.Instances[j].Confidence == 0 {
				l.Instances[j].Confidence = l.Confidence
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// Sanitize removes code fences, comments, and trailing commas from a model
// reply and keeps only the outermost {...}
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
