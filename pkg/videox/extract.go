package videox

import (
	"fmt"
	"os"

	"github.com/cyclopcam/vidlabel/pkg/rando"
)

// Extract a single frame from a video file and return the JPEG bytes
// If outputWidth is zero, then we use the same width as the input video
func ExtractFrame(srcFilename string, atSecond float64, outputWidth int) ([]byte, error) {
	tmpFilename := rando.TempFilename(".jpg")
	defer os.Remove(tmpFilename)
	args := []string{
		"-ss",
		fmt.Sprintf("%.3f", atSecond),
		"-i",
		srcFilename,
	}
	if outputWidth > 0 {
		args = append(args,
			"-vf",
			fmt.Sprintf("scale=%v:-1", outputWidth),
		)
	}
	args = append(args,
		"-frames:v",
		"1",
		"-q:v",
		"8",
		tmpFilename,
	)
	_, err := RunAppCombinedOutput("ffmpeg", args)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(tmpFilename)
}

// ExtractFrameIndex extracts the frame with the given zero-based index,
// and returns the JPEG bytes.
func ExtractFrameIndex(srcFilename string, frame int, info *VideoInfo, outputWidth int) ([]byte, error) {
	if frame < 0 || (info.FrameCount != 0 && frame >= info.FrameCount) {
		return nil, fmt.Errorf("Frame %v is out of range (video has %v frames)", frame, info.FrameCount)
	}
	return ExtractFrame(srcFilename, info.FrameToSecond(frame), outputWidth)
}
