package nn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectionToAnnotation(t *testing.T) {
	classes := []string{"cup", "person"}
	obj := ObjectDetection{Class: 1, Confidence: 0.75, Box: Rect{X: 10, Y: 20, Width: 30, Height: 40}}
	ann := obj.ToAnnotation(classes)
	require.Equal(t, "person", ann.Class)
	require.Equal(t, [4]int{10, 20, 40, 60}, ann.Box)
	require.NotNil(t, ann.Confidence)
	require.Equal(t, float32(0.75), *ann.Confidence)

	// Out of range class index stays visible
	obj.Class = 9
	require.Equal(t, "class_9", obj.ToAnnotation(classes).Class)
}

func TestVideoLabelsToFrameMap(t *testing.T) {
	labels := VideoLabels{
		Classes: []string{"cup"},
		Width:   640,
		Height:  480,
		Frames: []*ImageLabels{
			{Frame: 3, Objects: []ObjectDetection{det(0, 0.5, 0, 0, 10, 10), det(0, 0.6, 20, 20, 10, 10)}},
			{Frame: 9, Objects: []ObjectDetection{det(0, 0.7, 1, 1, 5, 5)}},
		},
	}
	frames := labels.ToFrameMap()
	require.Len(t, frames, 2)
	require.Len(t, frames[3], 2)
	require.Len(t, frames[9], 1)
	require.Equal(t, "cup", frames[3][0].Class)
	require.Equal(t, [4]int{1, 1, 6, 6}, frames[9][0].Box)
	require.Equal(t, 3, labels.TotalObjects())
}
