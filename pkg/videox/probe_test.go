package videox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	out := "width=1920\n" +
		"height=1080\n" +
		"r_frame_rate=30000/1001\n" +
		"duration=6.399000\n" +
		"nb_frames=192\n" +
		"duration=6.399000\n"
	info, err := parseProbeOutput(out)
	require.NoError(t, err)
	require.Equal(t, 1920, info.Width)
	require.Equal(t, 1080, info.Height)
	require.InDelta(t, 29.97, info.FPS, 0.01)
	require.Equal(t, 192, info.FrameCount)
	require.InDelta(t, 6.399, info.Duration.Seconds(), 0.001)
}

func TestParseProbeOutputWithNoise(t *testing.T) {
	// ffprobe on some systems prefixes its output with warnings
	out := "Warning: using insecure memory!\n" +
		"width=640\n" +
		"height=480\n" +
		"r_frame_rate=25/1\n" +
		"nb_frames=N/A\n" +
		"duration=N/A\n" +
		"duration=10.000000\n"
	info, err := parseProbeOutput(out)
	require.NoError(t, err)
	require.Equal(t, 640, info.Width)
	require.Equal(t, 480, info.Height)
	require.Equal(t, 25.0, info.FPS)
	require.Equal(t, time.Duration(10*time.Second), info.Duration)
	// nb_frames was N/A, so the count is derived from duration * fps
	require.Equal(t, 250, info.FrameCount)
}

func TestParseProbeOutputErrors(t *testing.T) {
	_, err := parseProbeOutput("")
	require.Error(t, err)

	_, err = parseProbeOutput("width=1920\nheight=1080\n")
	require.Error(t, err)

	_, err = parseProbeOutput("width=0\nheight=1080\nr_frame_rate=25/1\n")
	require.Error(t, err)
}

func TestFrameTiming(t *testing.T) {
	info := VideoInfo{Width: 640, Height: 480, FPS: 25, FrameCount: 250}
	require.InDelta(t, 0.02, info.FrameToSecond(0), 0.0001)
	require.InDelta(t, 4.02, info.FrameToSecond(100), 0.0001)
	require.Equal(t, 100, info.SecondToFrame(info.FrameToSecond(100)))
	require.Equal(t, 0, info.SecondToFrame(0))
}

func TestParseFrameRate(t *testing.T) {
	fps, err := parseFrameRate("30000/1001")
	require.NoError(t, err)
	require.InDelta(t, 29.97, fps, 0.01)

	fps, err = parseFrameRate("25/1")
	require.NoError(t, err)
	require.Equal(t, 25.0, fps)

	fps, err = parseFrameRate("24")
	require.NoError(t, err)
	require.Equal(t, 24.0, fps)

	_, err = parseFrameRate("25/0")
	require.Error(t, err)

	_, err = parseFrameRate("abc")
	require.Error(t, err)
}
