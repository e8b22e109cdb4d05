package nnonnx

import (
	"sort"

	"github.com/cyclopcam/vidlabel/pkg/nn"
)

// yoloBoxCount returns the number of candidate boxes that a YOLOv8 model
// emits for a given input resolution. The model predicts boxes on three
// grids, with strides 8, 16 and 32 (eg 8400 boxes for 640 x 640).
func yoloBoxCount(width, height int) int {
	return (width/8)*(height/8) + (width/16)*(height/16) + (width/32)*(height/32)
}

// decodeOutput scans the raw YOLOv8 output and returns every box whose best
// class probability is at least probabilityThreshold.
// The tensor layout is attribute-major: all xc values first, then all yc, w, h,
// and then one plane of probabilities per class.
// Box coordinates are scaled from model space into crop space.
func decodeOutput(output []float32, numBoxes, numClasses, modelWidth, modelHeight, cropWidth, cropHeight int, probabilityThreshold float32) []nn.ObjectDetection {
	objects := []nn.ObjectDetection{}
	for idx := 0; idx < numBoxes; idx++ {
		classID := 0
		probability := float32(-1)
		for c := 0; c < numClasses; c++ {
			p := output[(4+c)*numBoxes+idx]
			if p > probability {
				probability = p
				classID = c
			}
		}
		if probability < probabilityThreshold {
			continue
		}
		xc := output[idx]
		yc := output[numBoxes+idx]
		w := output[2*numBoxes+idx]
		h := output[3*numBoxes+idx]
		x1 := (xc - w/2) / float32(modelWidth) * float32(cropWidth)
		y1 := (yc - h/2) / float32(modelHeight) * float32(cropHeight)
		x2 := (xc + w/2) / float32(modelWidth) * float32(cropWidth)
		y2 := (yc + h/2) / float32(modelHeight) * float32(cropHeight)
		objects = append(objects, nn.ObjectDetection{
			Class:      classID,
			Confidence: probability,
			Box:        nn.MakeRect(int(x1), int(y1), int(x2), int(y2)),
		})
	}
	return objects
}

// nonMaxSuppression discards lower confidence boxes that overlap a higher
// confidence box of the same class by more than iouThreshold.
// The result is sorted by descending confidence.
func nonMaxSuppression(objects []nn.ObjectDetection, iouThreshold float32) []nn.ObjectDetection {
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Confidence > objects[j].Confidence
	})
	keep := []nn.ObjectDetection{}
	for _, candidate := range objects {
		overlaps := false
		for _, existing := range keep {
			if existing.Class == candidate.Class && existing.Box.IOU(candidate.Box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			keep = append(keep, candidate)
		}
	}
	return keep
}

// clipToBounds clamps boxes to the crop rectangle
func clipToBounds(objects []nn.ObjectDetection, width, height int) {
	for i := range objects {
		b := objects[i].Box
		x1 := max(0, b.X)
		y1 := max(0, b.Y)
		x2 := min(width, b.X2())
		y2 := min(height, b.Y2())
		objects[i].Box = nn.MakeRect(x1, y1, x2, y2)
	}
}
