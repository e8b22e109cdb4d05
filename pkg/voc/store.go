package voc

import (
	"sort"
)

// SaveFunc persists the annotation set of one frame.
type SaveFunc func(frame int, objects []Annotation) error

// Store holds the working annotations of one video, keyed by frame index.
// Frame indexes need not be contiguous or start at zero. A frame whose set
// has been replaced with an empty one stays in the store ("annotated, but no
// objects"), but is excluded from export and from AnnotatedFrameCount.
//
// Every Set is written through to the save function, so memory and storage
// cannot drift apart. The store does no locking of its own; it has a single
// owner, and that owner synchronizes access.
type Store struct {
	frames   map[int][]Annotation
	save     SaveFunc
	validate bool
	classes  []string
}

// NewStore creates an empty store. If save is nil, the store is memory-only.
func NewStore(save SaveFunc) *Store {
	return &Store{
		frames: map[int][]Annotation{},
		save:   save,
	}
}

// EnableValidation makes Set reject malformed annotations (inverted boxes,
// empty class names, labels outside classes). Validation is off by default,
// and an empty classes list checks box shape only.
func (s *Store) EnableValidation(classes []string) {
	s.validate = true
	s.classes = classes
}

// Get returns the annotations of a frame, or an empty set if the frame has
// never been annotated.
func (s *Store) Get(frame int) []Annotation {
	return s.frames[frame]
}

// Set replaces the entire annotation set of a frame, and writes the new set
// through to the save function. If the save fails, the in-memory value is
// rolled back to its previous state and the error is returned.
func (s *Store) Set(frame int, objects []Annotation) error {
	if s.validate {
		for i := range objects {
			if err := objects[i].Validate(s.classes); err != nil {
				return err
			}
		}
	}
	prev, hadPrev := s.frames[frame]
	s.frames[frame] = objects
	if s.save != nil {
		if err := s.save(frame, objects); err != nil {
			if hadPrev {
				s.frames[frame] = prev
			} else {
				delete(s.frames, frame)
			}
			return err
		}
	}
	return nil
}

// TotalCount returns the number of boxes across all frames.
func (s *Store) TotalCount() int {
	n := 0
	for _, objects := range s.frames {
		n += len(objects)
	}
	return n
}

// AnnotatedFrameCount returns the number of frames with at least one box.
func (s *Store) AnnotatedFrameCount() int {
	n := 0
	for _, objects := range s.frames {
		if len(objects) != 0 {
			n++
		}
	}
	return n
}

// FrameIndexes returns every frame index in the store, in ascending order.
func (s *Store) FrameIndexes() []int {
	frames := make([]int, 0, len(s.frames))
	for frame := range s.frames {
		frames = append(frames, frame)
	}
	sort.Ints(frames)
	return frames
}

// Frames returns a snapshot of the store's contents. The annotation slices
// are shared with the store, so treat the result as read-only.
func (s *Store) Frames() map[int][]Annotation {
	snapshot := make(map[int][]Annotation, len(s.frames))
	for frame, objects := range s.frames {
		snapshot[frame] = objects
	}
	return snapshot
}
