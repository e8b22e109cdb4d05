package nn

import (
	"image"
)

// WholeImageFromImage converts a decoded image into an RGB ImageCrop
// covering the whole image.
func WholeImageFromImage(im image.Image) ImageCrop {
	bounds := im.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	pixels := make([]byte, width*height*3)
	if rgba, ok := im.(*image.RGBA); ok {
		for y := 0; y < height; y++ {
			src := rgba.Pix[y*rgba.Stride:]
			dst := pixels[y*width*3:]
			for x := 0; x < width; x++ {
				dst[x*3] = src[x*4]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4+2]
			}
		}
	} else {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := im.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				p := (y*width + x) * 3
				pixels[p] = byte(r >> 8)
				pixels[p+1] = byte(g >> 8)
				pixels[p+2] = byte(b >> 8)
			}
		}
	}
	return WholeImage(3, pixels, width, height)
}

// ToImage copies the crop into a new RGBA image.
func (c ImageCrop) ToImage() *image.RGBA {
	im := image.NewRGBA(image.Rect(0, 0, c.CropWidth, c.CropHeight))
	stride := c.Stride()
	for y := 0; y < c.CropHeight; y++ {
		src := c.Pixels[(c.CropY+y)*stride+c.CropX*c.NChan:]
		dst := im.Pix[y*im.Stride:]
		for x := 0; x < c.CropWidth; x++ {
			dst[x*4] = src[x*c.NChan]
			dst[x*4+1] = src[x*c.NChan+1]
			dst[x*4+2] = src[x*c.NChan+2]
			dst[x*4+3] = 255
		}
	}
	return im
}
