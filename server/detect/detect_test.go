package detect

import (
	"errors"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/pkg/nn"
	"github.com/cyclopcam/vidlabel/pkg/voc"
	"github.com/cyclopcam/vidlabel/server/anndb"
	"github.com/stretchr/testify/require"
)

// Inference runs on a scaled-down video, so boxes must be scaled back up to
// the native resolution before they are stored.
func TestApplyLabelsScaled(t *testing.T) {
	video := &anndb.Video{Width: 1280, Height: 720}
	labels := &nn.VideoLabels{
		Classes: []string{"person", "car"},
		Width:   640,
		Height:  360,
		Frames: []*nn.ImageLabels{
			{Frame: 0, Objects: []nn.ObjectDetection{
				{Class: 0, Confidence: 0.9, Box: nn.Rect{X: 10, Y: 20, Width: 100, Height: 50}},
			}},
			{Frame: 3, Objects: []nn.ObjectDetection{
				{Class: 1, Confidence: 0.8, Box: nn.Rect{X: 0, Y: 0, Width: 640, Height: 360}},
				{Class: 0, Confidence: 0.7, Box: nn.Rect{X: 5, Y: 5, Width: 10, Height: 10}},
			}},
		},
	}
	saved := map[int][]voc.Annotation{}
	save := func(frame int, objects []voc.Annotation) error {
		saved[frame] = objects
		return nil
	}
	counts, err := applyLabels(labels, video, save)
	require.NoError(t, err)
	require.Equal(t, map[int]int{0: 1, 3: 2}, counts)
	require.Len(t, saved, 2)
	require.Equal(t, "person", saved[0][0].Class)
	require.Equal(t, [4]int{20, 40, 220, 140}, saved[0][0].Box)
	require.Equal(t, "car", saved[3][0].Class)
	require.Equal(t, [4]int{0, 0, 1280, 720}, saved[3][0].Box)
	require.Equal(t, [4]int{10, 10, 30, 30}, saved[3][1].Box)
}

// At native resolution the boxes pass through untouched
func TestApplyLabelsNative(t *testing.T) {
	video := &anndb.Video{Width: 640, Height: 360}
	labels := &nn.VideoLabels{
		Classes: []string{"person"},
		Width:   640,
		Height:  360,
		Frames: []*nn.ImageLabels{
			{Frame: 7, Objects: []nn.ObjectDetection{
				{Class: 0, Confidence: 0.5, Box: nn.Rect{X: 11, Y: 13, Width: 17, Height: 19}},
			}},
		},
	}
	saved := map[int][]voc.Annotation{}
	_, err := applyLabels(labels, video, func(frame int, objects []voc.Annotation) error {
		saved[frame] = objects
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [4]int{11, 13, 28, 32}, saved[7][0].Box)
	require.NotNil(t, saved[7][0].Confidence)
	require.Equal(t, float32(0.5), *saved[7][0].Confidence)
}

func TestApplyLabelsSaveError(t *testing.T) {
	video := &anndb.Video{Width: 640, Height: 360}
	labels := &nn.VideoLabels{
		Classes: []string{"person"},
		Width:   640,
		Height:  360,
		Frames: []*nn.ImageLabels{
			{Frame: 1, Objects: []nn.ObjectDetection{{Class: 0, Box: nn.Rect{X: 1, Y: 1, Width: 2, Height: 2}}}},
		},
	}
	fail := errors.New("save failed")
	_, err := applyLabels(labels, video, func(frame int, objects []voc.Annotation) error {
		return fail
	})
	require.ErrorIs(t, err, fail)
}

func TestNoModel(t *testing.T) {
	d := NewDetectServer(logs.NewTestingLog(t), nil, Config{})
	require.False(t, d.Enabled())
	_, err := d.getDetector()
	require.ErrorIs(t, err, ErrNoModel)
}
