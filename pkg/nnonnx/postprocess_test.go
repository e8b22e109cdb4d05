package nnonnx

import (
	"testing"

	"github.com/cyclopcam/vidlabel/pkg/nn"
	"github.com/stretchr/testify/require"
)

type rawBox struct {
	index      int // box index in the output tensor
	xc, yc     float32
	w, h       float32
	class      int
	confidence float32
}

// buildOutput creates a raw YOLOv8 output tensor with the given boxes written
// in, and zeros everywhere else.
func buildOutput(numBoxes, numClasses int, boxes []rawBox) []float32 {
	output := make([]float32, (4+numClasses)*numBoxes)
	for _, b := range boxes {
		output[b.index] = b.xc
		output[numBoxes+b.index] = b.yc
		output[2*numBoxes+b.index] = b.w
		output[3*numBoxes+b.index] = b.h
		output[(4+b.class)*numBoxes+b.index] = b.confidence
	}
	return output
}

func TestYoloBoxCount(t *testing.T) {
	require.Equal(t, 8400, yoloBoxCount(640, 640))
	require.Equal(t, 2100, yoloBoxCount(320, 320))
	require.Equal(t, 1680, yoloBoxCount(320, 256))
}

func TestDecodeOutput(t *testing.T) {
	output := buildOutput(100, 3, []rawBox{
		{index: 5, xc: 100, yc: 80, w: 40, h: 20, class: 1, confidence: 0.9},
		{index: 50, xc: 300, yc: 300, w: 50, h: 50, class: 2, confidence: 0.3}, // below threshold
	})
	objects := decodeOutput(output, 100, 3, 640, 640, 640, 640, 0.5)
	require.Len(t, objects, 1)
	require.Equal(t, 1, objects[0].Class)
	require.Equal(t, float32(0.9), objects[0].Confidence)
	require.Equal(t, nn.MakeRect(80, 70, 120, 90), objects[0].Box)
}

func TestDecodeOutputScaling(t *testing.T) {
	// Model space is 640 x 640, crop is 1280 x 720
	output := buildOutput(100, 2, []rawBox{
		{index: 0, xc: 320, yc: 320, w: 160, h: 160, class: 0, confidence: 0.8},
	})
	objects := decodeOutput(output, 100, 2, 640, 640, 1280, 720, 0.5)
	require.Len(t, objects, 1)
	require.Equal(t, nn.MakeRect(480, 270, 800, 450), objects[0].Box)
}

func TestDecodeOutputPicksBestClass(t *testing.T) {
	numBoxes := 10
	numClasses := 4
	output := buildOutput(numBoxes, numClasses, []rawBox{
		{index: 3, xc: 100, yc: 100, w: 20, h: 20, class: 0, confidence: 0.6},
	})
	// A stronger probability for class 2 on the same box
	output[(4+2)*numBoxes+3] = 0.75
	objects := decodeOutput(output, numBoxes, numClasses, 640, 640, 640, 640, 0.5)
	require.Len(t, objects, 1)
	require.Equal(t, 2, objects[0].Class)
	require.Equal(t, float32(0.75), objects[0].Confidence)
}

func TestNonMaxSuppression(t *testing.T) {
	objects := []nn.ObjectDetection{
		{Class: 0, Confidence: 0.8, Box: nn.MakeRect(5, 5, 105, 105)},   // overlaps the 0.9 box, same class
		{Class: 0, Confidence: 0.9, Box: nn.MakeRect(0, 0, 100, 100)},   // winner
		{Class: 1, Confidence: 0.7, Box: nn.MakeRect(0, 0, 100, 100)},   // same box, different class
		{Class: 0, Confidence: 0.6, Box: nn.MakeRect(500, 500, 600, 600)}, // far away
	}
	keep := nonMaxSuppression(objects, 0.45)
	require.Len(t, keep, 3)
	require.Equal(t, float32(0.9), keep[0].Confidence)
	require.Equal(t, 0, keep[0].Class)
	require.Equal(t, nn.MakeRect(0, 0, 100, 100), keep[0].Box)
	// Result stays sorted by descending confidence
	for i := 1; i < len(keep); i++ {
		require.LessOrEqual(t, keep[i].Confidence, keep[i-1].Confidence)
	}
}

func TestNonMaxSuppressionEmpty(t *testing.T) {
	keep := nonMaxSuppression([]nn.ObjectDetection{}, 0.45)
	require.Empty(t, keep)
}

func TestClipToBounds(t *testing.T) {
	objects := []nn.ObjectDetection{
		{Class: 0, Confidence: 0.9, Box: nn.MakeRect(-10, -5, 50, 60)},
		{Class: 1, Confidence: 0.8, Box: nn.MakeRect(90, 95, 150, 140)},
		{Class: 2, Confidence: 0.7, Box: nn.MakeRect(10, 10, 20, 20)},
	}
	clipToBounds(objects, 100, 100)
	require.Equal(t, nn.MakeRect(0, 0, 50, 60), objects[0].Box)
	require.Equal(t, nn.MakeRect(90, 95, 100, 100), objects[1].Box)
	require.Equal(t, nn.MakeRect(10, 10, 20, 20), objects[2].Box)
}
