package nn

import (
	flatbush "github.com/bmharper/flatbush-go"
)

// MergeDuplicateObjects scans all pairs of objects, and where two objects of
// the same class overlap with IoU >= minIoU, drops the one with the lower
// confidence. This matters after mapping model classes onto project labels:
// a model that reports both "car" and "truck" on the same vehicle yields two
// boxes for one object once both names map to the same label.
// Returns the indices of the objects to retain, in their original order.
func MergeDuplicateObjects(input []ObjectDetection, minIoU float32) []int {
	// Create spatial index to avoid O(N^2) comparisons
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(input))
	for _, b := range input {
		fb.Add(int32(b.Box.X), int32(b.Box.Y), int32(b.Box.X2()), int32(b.Box.Y2()))
	}
	fb.Finish()

	// The objects that we've already merged away
	deleted := map[int]bool{}
	nChanged := 1

	for nChanged != 0 {
		nChanged = 0
		for i, in := range input {
			if deleted[i] {
				continue
			}
			for _, j := range fb.Search(int32(in.Box.X), int32(in.Box.Y), int32(in.Box.X2()), int32(in.Box.Y2())) {
				if i == j || deleted[j] {
					continue
				}
				if input[j].Class != in.Class {
					continue
				}
				if in.Box.IOU(input[j].Box) >= minIoU {
					// Keep the more confident of the pair
					victim := i
					if input[j].Confidence < in.Confidence {
						victim = j
					}
					deleted[victim] = true
					nChanged++
					if victim == i {
						break
					}
				}
			}
		}
	}

	retain := make([]int, 0, len(input))
	for i := range input {
		if !deleted[i] {
			retain = append(retain, i)
		}
	}
	return retain
}
