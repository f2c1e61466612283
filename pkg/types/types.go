package types

import "image/color"

// Box represents a fractional bounding box: left, top, width and height
// relative to the image dimensions, nominally in [0,1]
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the fractional area covered by the box
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Instance is one located occurrence of a label
type Instance struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Label is a detected category. Confidence values are percentages (0-100).
type Label struct {
	Name       string     `json:"name"`
	Confidence float64    `json:"confidence"`
	Instances  []Instance `json:"instances,omitempty"`
	Parents    []string   `json:"parents,omitempty"`
}

// ObjectRef is a parsed object location
type ObjectRef struct {
	URI    string `json:"uri"`
	Scheme string `json:"scheme"`
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key"`
}

// DetectRequest describes one label detection call
type DetectRequest struct {
	Object        ObjectRef
	Image         []byte
	Width         int
	Height        int
	MaxLabels     int
	MinConfidence float64
}

// DetectionResult is the serializable output of one run
type DetectionResult struct {
	Source  string  `json:"source"`
	Backend string  `json:"backend"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Labels  []Label `json:"labels"`
}

// RenderOptions controls how label instances are drawn
type RenderOptions struct {
	BoxColor     color.NRGBA
	TextColor    color.NRGBA
	CaptionColor color.NRGBA
	CaptionAlpha float64
	Stroke       int
	FontSize     float64
	Title        string
}
