package videox

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// VideoInfo is the metadata of a video file that we care about.
type VideoInfo struct {
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	FPS        float64       `json:"fps"`
	Duration   time.Duration `json:"duration"`
	FrameCount int           `json:"frameCount"`
}

// FrameToSecond returns the time offset of the middle of a frame's display
// interval. Handing this to a seek lands us inside the frame, instead of on
// the boundary where rounding could pick a neighbour.
func (v *VideoInfo) FrameToSecond(frame int) float64 {
	return (float64(frame) + 0.5) / v.FPS
}

// SecondToFrame returns the frame on screen at the given time offset.
func (v *VideoInfo) SecondToFrame(second float64) int {
	return int(second * v.FPS)
}

// ProbeVideo extracts the metadata of a video file.
func ProbeVideo(srcFilename string) (*VideoInfo, error) {
	args := []string{
		"-v",
		"error",
		"-select_streams",
		"v:0",
		"-show_entries",
		"stream=width,height,r_frame_rate,nb_frames,duration",
		"-show_entries",
		"format=duration",
		"-of",
		"default=noprint_wrappers=1",
		srcFilename,
	}
	out, err := RunAppCombinedOutput("ffprobe", args)
	if err != nil {
		return nil, err
	}
	return parseProbeOutput(string(out))
}

// parseProbeOutput reads "key=value" lines from ffprobe.
// ffprobe can emit noise lines (eg "Warning: using insecure memory!"), and
// "N/A" values for fields the container doesn't carry, so we take what we
// can parse and derive the rest.
func parseProbeOutput(out string) (*VideoInfo, error) {
	info := &VideoInfo{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			if w, err := strconv.Atoi(value); err == nil {
				info.Width = w
			}
		case "height":
			if h, err := strconv.Atoi(value); err == nil {
				info.Height = h
			}
		case "r_frame_rate":
			if fps, err := parseFrameRate(value); err == nil {
				info.FPS = fps
			}
		case "nb_frames":
			if n, err := strconv.Atoi(value); err == nil {
				info.FrameCount = n
			}
		case "duration":
			// Present once for the stream and once for the format. The stream
			// value comes first, and we keep the first one that parses.
			if info.Duration == 0 {
				if seconds, err := strconv.ParseFloat(value, 64); err == nil {
					info.Duration = time.Duration(seconds * float64(time.Second))
				}
			}
		}
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("Unable to parse video dimensions from ffprobe output: %v", out)
	}
	if info.FPS <= 0 {
		return nil, fmt.Errorf("Unable to parse video frame rate from ffprobe output: %v", out)
	}
	if info.FrameCount == 0 && info.Duration != 0 {
		info.FrameCount = int(math.Round(info.Duration.Seconds() * info.FPS))
	}
	return info, nil
}

// parseFrameRate reads an ffprobe rational such as "30000/1001" or "25/1"
func parseFrameRate(v string) (float64, error) {
	num, den, ok := strings.Cut(v, "/")
	if !ok {
		return strconv.ParseFloat(v, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("Invalid frame rate '%v'", v)
	}
	return n / d, nil
}
