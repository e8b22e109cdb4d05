// Package voc turns labelled video frames into PASCAL VOC annotation
// documents, and packages them with the source video into a single archive.
package voc

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Annotation is one labelled box on a video frame.
// Box is [x1,y1,x2,y2], in pixels of the frame's native resolution.
// Confidence is set when the box came from a detector, and nil when a person drew it.
type Annotation struct {
	Class      string   `json:"class"`
	Box        [4]int   `json:"bbox"`
	Confidence *float32 `json:"conf,omitempty"`
}

// FrameShape is the pixel geometry of a video's frames.
// Depth is the number of color channels (3 for RGB).
type FrameShape struct {
	Height int `json:"height"`
	Width  int `json:"width"`
	Depth  int `json:"depth"`
}

var (
	ErrInvalidFrameShape   = errors.New("invalid frame shape")
	ErrMalformedAnnotation = errors.New("malformed annotation")
)

// Validate returns ErrInvalidFrameShape if any dimension is not positive.
func (s FrameShape) Validate() error {
	if s.Height <= 0 || s.Width <= 0 || s.Depth <= 0 {
		return fmt.Errorf("%w: %vx%vx%v", ErrInvalidFrameShape, s.Height, s.Width, s.Depth)
	}
	return nil
}

// Validate returns ErrMalformedAnnotation if the box is inverted, the class
// name is empty or not in classes, or the confidence is outside [0,1].
// An empty classes list allows any class name.
func (a *Annotation) Validate(classes []string) error {
	if a.Class == "" {
		return fmt.Errorf("%w: empty class name", ErrMalformedAnnotation)
	}
	if a.Box[0] > a.Box[2] || a.Box[1] > a.Box[3] {
		return fmt.Errorf("%w: inverted box %v", ErrMalformedAnnotation, a.Box)
	}
	if a.Confidence != nil && (*a.Confidence < 0 || *a.Confidence > 1) {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedAnnotation, *a.Confidence)
	}
	if len(classes) != 0 && !slices.Contains(classes, a.Class) {
		return fmt.Errorf("%w: class %q is not in the project's class set", ErrMalformedAnnotation, a.Class)
	}
	return nil
}

// ScaleAnnotations maps boxes from one frame resolution to another, eg from
// a detector's scaled-down frames back to the video's native pixels.
// A no-op when the resolutions match, or the source resolution is unknown.
func ScaleAnnotations(objects []Annotation, fromWidth, fromHeight, toWidth, toHeight int) {
	if fromWidth == toWidth && fromHeight == toHeight {
		return
	}
	if fromWidth <= 0 || fromHeight <= 0 {
		return
	}
	sx := float64(toWidth) / float64(fromWidth)
	sy := float64(toHeight) / float64(fromHeight)
	for i := range objects {
		b := &objects[i].Box
		b[0] = int(math.Round(float64(b[0]) * sx))
		b[1] = int(math.Round(float64(b[1]) * sy))
		b[2] = int(math.Round(float64(b[2]) * sx))
		b[3] = int(math.Round(float64(b[3]) * sy))
	}
}
