package videox

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Frame is one decoded video frame, as packed RGB
type Frame struct {
	Index  int // Frame index in the source video
	Width  int
	Height int
	Pixels []byte
}

// FrameReader decodes a video into a stream of RGB frames, by running
// ffmpeg with a rawvideo pipe. It can skip frames (stride) and scale the
// output down, which is how we keep whole-video inference affordable.
type FrameReader struct {
	Width       int // Output frame width, after scaling
	Height      int // Output frame height, after scaling
	StartFrame  int
	FrameStride int

	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    bytes.Buffer
	nextIndex int
	finished  bool
}

// NewFrameReader starts decoding srcFilename from startFrame, emitting every
// stride'th frame. If maxHeight is not zero and the video is taller, frames
// are scaled down to maxHeight, preserving aspect.
func NewFrameReader(srcFilename string, info *VideoInfo, maxHeight, startFrame, stride int) (*FrameReader, error) {
	if stride < 1 {
		stride = 1
	}
	if startFrame < 0 {
		startFrame = 0
	}
	outWidth, outHeight := scaledSize(info.Width, info.Height, maxHeight)

	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("Unable to find 'ffmpeg' in your path (%w)", err)
	}
	r := &FrameReader{
		Width:       outWidth,
		Height:      outHeight,
		StartFrame:  startFrame,
		FrameStride: stride,
		nextIndex:   startFrame,
	}
	args := frameReaderArgs(srcFilename, outWidth, outHeight, startFrame, stride)
	r.cmd = &exec.Cmd{
		Path: ffmpeg,
		Args: append([]string{"ffmpeg"}, args...),
	}
	r.cmd.Stderr = &r.stderr
	stdout, err := r.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	r.stdout = stdout
	if err := r.cmd.Start(); err != nil {
		return nil, err
	}
	return r, nil
}

// NextFrame returns the next decoded frame, or io.EOF at the end of the video.
func (r *FrameReader) NextFrame() (*Frame, error) {
	if r.finished {
		return nil, io.EOF
	}
	pixels := make([]byte, r.Width*r.Height*3)
	_, err := io.ReadFull(r.stdout, pixels)
	if err == io.EOF {
		r.finished = true
		if werr := r.cmd.Wait(); werr != nil {
			return nil, fmt.Errorf("ffmpeg execution failed: %w (%v)", werr, r.stderr.String())
		}
		return nil, io.EOF
	}
	if err != nil {
		r.finished = true
		r.cmd.Wait()
		return nil, fmt.Errorf("Truncated frame from ffmpeg: %w (%v)", err, r.stderr.String())
	}
	frame := &Frame{
		Index:  r.nextIndex,
		Width:  r.Width,
		Height: r.Height,
		Pixels: pixels,
	}
	r.nextIndex += r.FrameStride
	return frame, nil
}

// Close stops ffmpeg if it is still running. Safe to call after EOF.
func (r *FrameReader) Close() {
	if !r.finished {
		r.finished = true
		r.cmd.Process.Kill()
		r.cmd.Wait()
	}
	r.stdout.Close()
}

// scaledSize shrinks (width, height) to maxHeight if the video is taller,
// preserving aspect. maxHeight of zero means no scaling.
func scaledSize(width, height, maxHeight int) (int, int) {
	if maxHeight <= 0 || height <= maxHeight {
		return width, height
	}
	aspect := float64(width) / float64(height)
	return int(float64(maxHeight)*aspect + 0.5), maxHeight
}

func frameReaderArgs(srcFilename string, outWidth, outHeight, startFrame, stride int) []string {
	args := []string{
		"-v",
		"error",
		"-i",
		srcFilename,
	}
	filters := []string{}
	if startFrame > 0 || stride > 1 {
		// The commas inside the select expression are escaped so that the
		// filter parser doesn't read them as filter separators.
		filters = append(filters, fmt.Sprintf("select=gte(n\\,%v)*not(mod(n-%v\\,%v))", startFrame, startFrame, stride))
	}
	filters = append(filters, fmt.Sprintf("scale=%v:%v", outWidth, outHeight))
	args = append(args,
		"-vf",
		strings.Join(filters, ","),
		"-vsync",
		"vfr",
		"-f",
		"rawvideo",
		"-pix_fmt",
		"rgb24",
		"pipe:1",
	)
	return args
}
