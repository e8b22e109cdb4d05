package nn

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cyclopcam/vidlabel/pkg/perfstats"
	"github.com/cyclopcam/vidlabel/pkg/videox"
)

type InferenceOptions struct {
	MinSize        int               // Minimum size of object, in pixels. If max(width, height) >= MinSize, then use the object
	MaxVideoHeight int               // If video height is larger than this, then scale it down to this size (0 = no scaling)
	StartFrame     int               // Start processing at frame (0 = start at beginning)
	EndFrame       int               // Stop processing at frame (0 = process to end)
	FrameStride    int               // Process every n'th frame (0 or 1 = every frame)
	Classes        []string          // List of class names to detect (eg ["person", "car", "bear"]). Any classes not included in the list are ignored.
	Params         *DetectionParams  // Detection thresholds (nil = defaults)
	StdOutProgress bool              // Emit progress to stdout
	Progress       func(frame, frameCount int) // If not nil, called after every processed frame
	Stats          *InferenceStats   // If not nil, filled with performance counters during the run
}

// InferenceStats accumulates performance counters over a video pass
type InferenceStats struct {
	DecodeTime    perfstats.TimeAccumulator // Time spent waiting for decoded frames
	InferenceTime perfstats.TimeAccumulator // Time spent inside the neural network
}

// RunInferenceOnVideoFile runs the object detector over a whole video, and
// returns the labels of every frame where something was found. Frame indices
// in the result refer to the source video, even when FrameStride skips
// frames. Box coordinates are in the scaled resolution, recorded in the
// result's Width and Height.
func RunInferenceOnVideoFile(model ObjectDetector, inputFile string, options InferenceOptions) (*VideoLabels, error) {
	if len(options.Classes) == 0 {
		return nil, errors.New("No classes specified")
	}

	modelConfig := model.Config()

	// Build a dictionary of the class indices that we're interested in
	nnClassToIndex := map[string]int{}
	for i, class := range modelConfig.Classes {
		nnClassToIndex[class] = i
	}

	nnClassToOutputClass := map[int]int{}

	for iOut, class := range options.Classes {
		iIn, ok := nnClassToIndex[class]
		if !ok {
			return nil, fmt.Errorf("Class '%v' not found in model", class)
		}
		nnClassToOutputClass[iIn] = iOut
	}

	info, err := videox.ProbeVideo(inputFile)
	if err != nil {
		return nil, err
	}

	stride := options.FrameStride
	if stride < 1 {
		stride = 1
	}
	reader, err := videox.NewFrameReader(inputFile, info, options.MaxVideoHeight, options.StartFrame, stride)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	nnParams := options.Params
	if nnParams == nil {
		nnParams = NewDetectionParams()
	}

	videoLabels := VideoLabels{
		Classes: options.Classes,
		Width:   reader.Width,
		Height:  reader.Height,
	}

	for {
		start := time.Now()
		frame, err := reader.NextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if options.Stats != nil {
			options.Stats.DecodeTime.AddSample(time.Since(start))
		}
		if options.EndFrame > 0 && frame.Index > options.EndFrame {
			break
		}

		img := WholeImage(3, frame.Pixels, frame.Width, frame.Height)
		start = time.Now()
		objects, err := TiledInference(model, img, nnParams, 1)
		if err != nil {
			return nil, err
		}
		if options.Stats != nil {
			options.Stats.InferenceTime.AddSample(time.Since(start))
		}

		frameLabels := &ImageLabels{
			Frame: frame.Index,
		}
		for _, obj := range objects {
			outClass, ok := nnClassToOutputClass[obj.Class]
			if ok &&
				(obj.Box.Width >= options.MinSize || obj.Box.Height >= options.MinSize) {
				obj.Class = outClass
				frameLabels.Objects = append(frameLabels.Objects, obj)
			}
		}
		if len(frameLabels.Objects) != 0 {
			videoLabels.Frames = append(videoLabels.Frames, frameLabels)
		}
		if options.StdOutProgress {
			fmt.Printf("%v: %v\n", frame.Index, frameLabels.Objects)
		}
		if options.Progress != nil {
			options.Progress(frame.Index, info.FrameCount)
		}
	}

	return &videoLabels, nil
}
