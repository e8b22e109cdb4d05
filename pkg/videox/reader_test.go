package videox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScaledSize(t *testing.T) {
	w, h := scaledSize(1920, 1080, 0)
	require.Equal(t, 1920, w)
	require.Equal(t, 1080, h)

	w, h = scaledSize(1920, 1080, 2000)
	require.Equal(t, 1920, w)
	require.Equal(t, 1080, h)

	w, h = scaledSize(1920, 1080, 540)
	require.Equal(t, 960, w)
	require.Equal(t, 540, h)

	// Odd aspect ratios round to the nearest pixel
	w, h = scaledSize(1280, 720, 500)
	require.Equal(t, 889, w)
	require.Equal(t, 500, h)
}

func TestFrameReaderArgs(t *testing.T) {
	args := frameReaderArgs("in.mp4", 640, 480, 0, 1)
	joined := strings.Join(args, " ")
	require.Contains(t, joined, "-i in.mp4")
	require.Contains(t, joined, "-vf scale=640:480")
	require.Contains(t, joined, "-pix_fmt rgb24")
	require.NotContains(t, joined, "select")

	args = frameReaderArgs("in.mp4", 640, 480, 12, 3)
	joined = strings.Join(args, " ")
	require.Contains(t, joined, `select=gte(n\,12)*not(mod(n-12\,3)),scale=640:480`)
	require.Equal(t, "pipe:1", args[len(args)-1])
}
