package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/vidlabel/pkg/nn"
	"github.com/cyclopcam/vidlabel/pkg/videox"
	"github.com/cyclopcam/vidlabel/pkg/voc"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("vocexport", "Package a video and its annotations as a PASCAL VOC zip")
	annotationsFile := parser.String("i", "annotations", &argparse.Options{Help: "Annotations JSON file: a map of frame index to boxes, or the output of labelvideo", Required: true})
	videoFile := parser.String("v", "video", &argparse.Options{Help: "The source video file", Required: true})
	outputFile := parser.String("o", "output", &argparse.Options{Help: "Output zip file (default: {video}_annotations.zip)", Required: false, Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	raw, err := os.ReadFile(*annotationsFile)
	check(err)
	info, err := videox.ProbeVideo(*videoFile)
	check(err)
	frames, err := parseAnnotations(raw, info)
	check(err)

	videoName := strings.TrimSuffix(filepath.Base(*videoFile), filepath.Ext(*videoFile))
	shape := voc.FrameShape{Height: info.Height, Width: info.Width, Depth: 3}
	docs, err := voc.Encode(frames, videoName, shape)
	check(err)

	archive, err := voc.BuildArchive(*videoFile, videoName, docs)
	check(err)
	out := *outputFile
	if out == "" {
		out = voc.ArchiveName(videoName)
	}
	check(os.WriteFile(out, archive, 0644))

	objects := 0
	for _, frameObjects := range frames {
		objects += len(frameObjects)
	}
	fmt.Printf("Wrote %v (%v documents, %v objects)\n", out, len(docs), objects)
}

// parseAnnotations reads either the annotation store's JSON shape, keyed by
// frame index:
//
//	{"0": [{"class": "good-cup", "bbox": [1,2,3,4]}], ...}
//
// or labelvideo's output. labelvideo boxes are in the inference resolution,
// so those get scaled up to the video's native pixels.
func parseAnnotations(raw []byte, info *videox.VideoInfo) (map[int][]voc.Annotation, error) {
	top := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("Unrecognized annotations format: %w", err)
	}
	if _, isLabels := top["frames"]; isLabels {
		labels := nn.VideoLabels{}
		if err := json.Unmarshal(raw, &labels); err != nil {
			return nil, fmt.Errorf("Invalid labelvideo output: %w", err)
		}
		frames := labels.ToFrameMap()
		for _, objects := range frames {
			voc.ScaleAnnotations(objects, labels.Width, labels.Height, info.Width, info.Height)
		}
		return frames, nil
	}
	frames := map[int][]voc.Annotation{}
	if err := json.Unmarshal(raw, &frames); err != nil {
		return nil, fmt.Errorf("Unrecognized annotations format: %w", err)
	}
	return frames, nil
}
