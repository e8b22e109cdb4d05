package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/pkg/nn"
	"github.com/cyclopcam/vidlabel/pkg/nnonnx"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("labelvideo", "Run an object detection model over a video, and write the labels as JSON")
	input := parser.String("i", "input", &argparse.Options{Help: "Input video file", Required: true})
	output := parser.File("o", "output", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0664, &argparse.Options{Help: "Output label file", Required: true})
	modelFile := parser.String("m", "model", &argparse.Options{Help: "Path to a .onnx object detection model", Required: true})
	onnxLibrary := parser.String("", "onnxlib", &argparse.Options{Help: "Path to the ONNX Runtime shared library", Required: false, Default: ""})
	classes := parser.String("c", "classes", &argparse.Options{Help: "Comma-separated list of named classes to detect (default: every class the model knows)", Required: false, Default: ""})
	minSize := parser.Int("", "minsize", &argparse.Options{Help: "Minimum size of object, in pixels", Required: false, Default: 0})
	maxVideoHeight := parser.Int("", "vheight", &argparse.Options{Help: "If video height is larger than this, then scale it down to this size", Required: false, Default: 0})
	startFrame := parser.Int("", "startframe", &argparse.Options{Help: "Start processing at frame", Required: false, Default: 0})
	endFrame := parser.Int("", "endframe", &argparse.Options{Help: "Stop processing at frame", Required: false, Default: 0})
	stride := parser.Int("s", "stride", &argparse.Options{Help: "Process every n'th frame", Required: false, Default: 1})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence (0..1)", Required: false, Default: 0.0})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	if *onnxLibrary != "" {
		nnonnx.SetLibraryPath(*onnxLibrary)
	}
	model, err := nnonnx.NewDetector(*modelFile, nn.ThreadingModeParallel)
	check(err)
	defer model.Close()
	logger.Infof("Loaded %v (%v classes)", *modelFile, len(model.Config().Classes))

	classList := model.Config().Classes
	if *classes != "" {
		classList = strings.Split(*classes, ",")
	}
	params := nn.NewDetectionParams()
	if *threshold > 0 {
		params.ProbabilityThreshold = float32(*threshold)
	}
	stats := nn.InferenceStats{}
	options := nn.InferenceOptions{
		MinSize:        *minSize,
		MaxVideoHeight: *maxVideoHeight,
		StartFrame:     *startFrame,
		EndFrame:       *endFrame,
		FrameStride:    *stride,
		Classes:        classList,
		Params:         params,
		StdOutProgress: true,
		Stats:          &stats,
	}

	videoLabels, err := nn.RunInferenceOnVideoFile(model, *input, options)
	check(err)
	fmt.Printf("%v frames labelled, %v objects (decode %v, NN %v per frame)\n",
		len(videoLabels.Frames), videoLabels.TotalObjects(), stats.DecodeTime.Average(), stats.InferenceTime.Average())

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(videoLabels)
	check(err)
}
