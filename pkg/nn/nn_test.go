package nn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImageCrop(t *testing.T) {
	pixels := make([]byte, 8*6*3)
	// Encode each pixel's coordinates into its color, so crops are verifiable
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			p := (y*8 + x) * 3
			pixels[p] = byte(x)
			pixels[p+1] = byte(y)
			pixels[p+2] = 7
		}
	}
	whole := WholeImage(3, pixels, 8, 6)
	require.Equal(t, 8, whole.CropWidth)
	require.Equal(t, 6, whole.CropHeight)
	require.Equal(t, 24, whole.Stride())

	crop := whole.Crop(2, 1, 6, 5)
	require.Equal(t, 4, crop.CropWidth)
	require.Equal(t, 4, crop.CropHeight)
	require.Equal(t, 2, crop.CropX)
	require.Equal(t, 1, crop.CropY)

	// A sub-crop is relative to its parent crop
	sub := crop.Crop(1, 1, 3, 3)
	require.Equal(t, 3, sub.CropX)
	require.Equal(t, 2, sub.CropY)

	require.Panics(t, func() { whole.Crop(0, 0, 9, 6) })
	require.Panics(t, func() { crop.Crop(-3, 0, 1, 1) })
}

func TestImageCropToImage(t *testing.T) {
	pixels := make([]byte, 8*6*3)
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			p := (y*8 + x) * 3
			pixels[p] = byte(x)
			pixels[p+1] = byte(y)
			pixels[p+2] = 7
		}
	}
	crop := WholeImage(3, pixels, 8, 6).Crop(2, 1, 6, 5)

	im := crop.ToImage()
	require.Equal(t, 4, im.Bounds().Dx())
	require.Equal(t, 4, im.Bounds().Dy())
	// Pixel (0,0) of the crop is pixel (2,1) of the source
	require.Equal(t, byte(2), im.Pix[0])
	require.Equal(t, byte(1), im.Pix[1])
	require.Equal(t, byte(7), im.Pix[2])
	require.Equal(t, byte(255), im.Pix[3])

	back := WholeImageFromImage(im)
	require.Equal(t, 3, back.NChan)
	require.Equal(t, 4, back.ImageWidth)
	require.Equal(t, 4, back.ImageHeight)
	require.Equal(t, byte(2), back.Pixels[0])
	require.Equal(t, byte(1), back.Pixels[1])
}

func TestLoadModelConfig(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{"architecture":"yolov8","width":640,"height":640,"classes":["person","car"]}`), 0644))
	config, err := LoadModelConfig(filename)
	require.NoError(t, err)
	require.Equal(t, "yolov8", config.Architecture)
	require.Equal(t, 640, config.Width)
	require.Equal(t, 640, config.Height)
	require.Equal(t, []string{"person", "car"}, config.Classes)

	_, err = LoadModelConfig(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestLoadClassFile(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "classes.txt")
	require.NoError(t, os.WriteFile(filename, []byte("person\n\ncar\n  bear  \n"), 0644))
	classes, err := LoadClassFile(filename)
	require.NoError(t, err)
	require.Equal(t, []string{"person", "car", "bear"}, classes)
}
