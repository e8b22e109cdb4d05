package voc

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
)

// Colors assigned to classes by their position in the class set, cycling
// when there are more classes than colors. Unknown classes draw in red.
var classColors = [][3]int{
	{0, 255, 0},
	{0, 0, 255},
	{0, 255, 255},
	{255, 0, 255},
	{255, 160, 0},
	{160, 0, 255},
	{0, 160, 160},
	{160, 160, 0},
}

var unknownClassColor = [3]int{255, 0, 0}

// DrawAnnotations returns a copy of the frame with each box and its label
// drawn on top. A class keeps the same color from frame to frame, taken
// from its position in classes. Detector boxes include their confidence in
// the label.
func DrawAnnotations(frame image.Image, objects []Annotation, classes []string) image.Image {
	dc := gg.NewContextForImage(frame)
	for i := range objects {
		obj := &objects[i]
		c := colorForClass(classes, obj.Class)
		x1 := float64(obj.Box[0])
		y1 := float64(obj.Box[1])
		boxWidth := float64(obj.Box[2] - obj.Box[0])
		boxHeight := float64(obj.Box[3] - obj.Box[1])

		dc.SetRGB255(c[0], c[1], c[2])
		dc.SetLineWidth(2)
		dc.DrawRectangle(x1, y1, boxWidth, boxHeight)
		dc.Stroke()

		label := obj.Class
		if obj.Confidence != nil {
			label = fmt.Sprintf("%v %.2f", obj.Class, *obj.Confidence)
		}
		textWidth, textHeight := dc.MeasureString(label)
		dc.DrawRectangle(x1, y1-textHeight-4, textWidth+4, textHeight+4)
		dc.Fill()
		dc.SetRGB255(255, 255, 255)
		dc.DrawString(label, x1+2, y1-2)
	}
	return dc.Image()
}

func colorForClass(classes []string, class string) [3]int {
	for i, c := range classes {
		if c == class {
			return classColors[i%len(classColors)]
		}
	}
	return unknownClassColor
}
