package videox

import (
	"fmt"
)

// TranscodeSeekable re-encodes a video with a keyframe every 10 frames, so
// that a browser can seek to arbitrary frames without long decode stalls.
// If maxWidth is not zero, the output is scaled down to that width.
// People scrub back and forth constantly while labelling, so we trade file
// size for seek latency here.
func TranscodeSeekable(srcFilename, dstFilename string, maxWidth int) error {
	args := []string{
		"-i",
		srcFilename,
	}
	if maxWidth > 0 {
		args = append(args,
			"-vf",
			fmt.Sprintf("scale='min(%v,iw)':-2", maxWidth),
		)
	}
	args = append(args,
		"-y",   // overwrite output file
		"-g",   // keyframe interval
		"10",   // keyframe every 10 frames
		"-crf", // constant rate factor
		"25",   // 0-51, 0 is lossless, 51 is worst quality
		dstFilename,
	)
	_, err := RunAppCombinedOutput("ffmpeg", args)
	if err != nil {
		return err
	}
	return nil
}
