package nn

import (
	"fmt"

	"github.com/cyclopcam/vidlabel/pkg/voc"
)

// VideoLabels contains labels for each video frame
type VideoLabels struct {
	Classes []string       `json:"classes"`
	Width   int            `json:"width,omitempty"`  // Width of the frames that were labelled (after any scaling)
	Height  int            `json:"height,omitempty"` // Height of the frames that were labelled (after any scaling)
	Frames  []*ImageLabels `json:"frames"`
}

type ImageLabels struct {
	Frame   int               `json:"frame,omitempty"` // For video, this is the frame number
	Objects []ObjectDetection `json:"objects"`
}

// ObjectDetection is an object that a neural network has found in an image
type ObjectDetection struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// ToAnnotation converts a detection into an annotation box, resolving the
// class index against classes. An out of range index becomes "class_N", so
// that a bad model config is visible in the output instead of vanishing.
func (o *ObjectDetection) ToAnnotation(classes []string) voc.Annotation {
	name := fmt.Sprintf("class_%v", o.Class)
	if o.Class >= 0 && o.Class < len(classes) {
		name = classes[o.Class]
	}
	confidence := o.Confidence
	return voc.Annotation{
		Class:      name,
		Box:        [4]int{o.Box.X, o.Box.Y, o.Box.X2(), o.Box.Y2()},
		Confidence: &confidence,
	}
}

// ToAnnotations converts one frame's detections into annotation boxes.
func (L *ImageLabels) ToAnnotations(classes []string) []voc.Annotation {
	objects := make([]voc.Annotation, 0, len(L.Objects))
	for i := range L.Objects {
		objects = append(objects, L.Objects[i].ToAnnotation(classes))
	}
	return objects
}

// ToFrameMap converts the whole video's labels into a frame index -> boxes
// mapping, which is the shape that the annotation store holds.
func (v *VideoLabels) ToFrameMap() map[int][]voc.Annotation {
	frames := make(map[int][]voc.Annotation, len(v.Frames))
	for _, frame := range v.Frames {
		frames[frame.Frame] = frame.ToAnnotations(v.Classes)
	}
	return frames
}

// TotalObjects returns the number of detected objects across all frames
func (v *VideoLabels) TotalObjects() int {
	n := 0
	for _, frame := range v.Frames {
		n += len(frame.Objects)
	}
	return n
}
