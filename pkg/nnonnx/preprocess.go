package nnonnx

import (
	"fmt"
	"image"

	"github.com/cyclopcam/vidlabel/pkg/nn"
	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
)

// prepareInput writes the crop into the model's input tensor, in the planar
// RGB layout that YOLO models expect, with values normalized to 0..1.
// If the crop is not already at the model resolution, it is resized.
func prepareInput(crop nn.ImageCrop, dst *ort.Tensor[float32], modelWidth, modelHeight int) error {
	data := dst.GetData()
	channelSize := modelWidth * modelHeight
	if len(data) < channelSize*3 {
		return fmt.Errorf("Input tensor holds %v floats, but the model needs %v", len(data), channelSize*3)
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	var img image.Image = crop.ToImage()
	if crop.CropWidth != modelWidth || crop.CropHeight != modelHeight {
		img = resize.Resize(uint(modelWidth), uint(modelHeight), img, resize.Lanczos3)
	}

	i := 0
	for y := 0; y < modelHeight; y++ {
		for x := 0; x < modelWidth; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255
			green[i] = float32(g>>8) / 255
			blue[i] = float32(b>>8) / 255
			i++
		}
	}
	return nil
}
