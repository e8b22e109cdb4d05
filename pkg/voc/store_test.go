package voc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func box(class string, x1, y1, x2, y2 int) Annotation {
	return Annotation{Class: class, Box: [4]int{x1, y1, x2, y2}}
}

func TestStoreGetSet(t *testing.T) {
	store := NewStore(nil)
	require.Empty(t, store.Get(0))

	require.NoError(t, store.Set(0, []Annotation{box("cup", 1, 2, 3, 4)}))
	require.Len(t, store.Get(0), 1)
	require.Equal(t, "cup", store.Get(0)[0].Class)

	// Set replaces the whole set
	require.NoError(t, store.Set(0, []Annotation{box("a", 1, 1, 2, 2), box("b", 3, 3, 4, 4)}))
	require.Len(t, store.Get(0), 2)

	require.NoError(t, store.Set(0, nil))
	require.Empty(t, store.Get(0))
}

func TestStoreCounts(t *testing.T) {
	store := NewStore(nil)
	require.Equal(t, 0, store.TotalCount())
	require.Equal(t, 0, store.AnnotatedFrameCount())

	require.NoError(t, store.Set(2, []Annotation{box("a", 1, 1, 2, 2), box("b", 3, 3, 4, 4)}))
	require.NoError(t, store.Set(7, []Annotation{box("a", 1, 1, 2, 2)}))
	require.NoError(t, store.Set(9, nil)) // annotated, but no objects
	require.Equal(t, 3, store.TotalCount())
	require.Equal(t, 2, store.AnnotatedFrameCount())
	require.Equal(t, []int{2, 7, 9}, store.FrameIndexes())
}

func TestStoreWriteThrough(t *testing.T) {
	saved := map[int][]Annotation{}
	store := NewStore(func(frame int, objects []Annotation) error {
		saved[frame] = objects
		return nil
	})
	require.NoError(t, store.Set(3, []Annotation{box("cup", 1, 2, 3, 4)}))
	require.Len(t, saved[3], 1)
	require.Equal(t, "cup", saved[3][0].Class)

	require.NoError(t, store.Set(3, nil))
	require.Empty(t, saved[3])
}

func TestStoreSaveFailureRollsBack(t *testing.T) {
	fail := false
	store := NewStore(func(frame int, objects []Annotation) error {
		if fail {
			return errors.New("disk full")
		}
		return nil
	})
	require.NoError(t, store.Set(0, []Annotation{box("cup", 1, 2, 3, 4)}))

	fail = true
	err := store.Set(0, []Annotation{box("mug", 5, 6, 7, 8)})
	require.Error(t, err)
	require.Equal(t, "cup", store.Get(0)[0].Class)
	require.Equal(t, 1, store.TotalCount())

	err = store.Set(5, []Annotation{box("mug", 5, 6, 7, 8)})
	require.Error(t, err)
	require.Empty(t, store.Get(5))
	require.Equal(t, []int{0}, store.FrameIndexes())
}

func TestStoreValidationOffByDefault(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Set(0, []Annotation{box("cup", 5, 5, 1, 1)}))
	require.NoError(t, store.Set(1, []Annotation{box("anything", 1, 1, 2, 2)}))
}

func TestStoreValidation(t *testing.T) {
	store := NewStore(nil)
	store.EnableValidation([]string{"cup", "mug"})
	require.ErrorIs(t, store.Set(0, []Annotation{box("cup", 5, 5, 1, 1)}), ErrMalformedAnnotation)
	require.ErrorIs(t, store.Set(0, []Annotation{box("", 1, 1, 2, 2)}), ErrMalformedAnnotation)
	require.ErrorIs(t, store.Set(0, []Annotation{box("plate", 1, 1, 2, 2)}), ErrMalformedAnnotation)
	require.Empty(t, store.Get(0))
	require.NoError(t, store.Set(0, []Annotation{box("mug", 1, 1, 2, 2)}))

	bad := float32(1.5)
	require.ErrorIs(t, store.Set(1, []Annotation{{Class: "cup", Box: [4]int{1, 1, 2, 2}, Confidence: &bad}}), ErrMalformedAnnotation)

	// An empty class set checks shape only
	store = NewStore(nil)
	store.EnableValidation(nil)
	require.NoError(t, store.Set(0, []Annotation{box("anything", 1, 1, 2, 2)}))
	require.ErrorIs(t, store.Set(0, []Annotation{box("anything", 2, 2, 1, 1)}), ErrMalformedAnnotation)
}

func TestStoreFramesSnapshot(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Set(4, []Annotation{box("cup", 1, 1, 2, 2)}))
	snapshot := store.Frames()
	require.Len(t, snapshot, 1)

	require.NoError(t, store.Set(5, []Annotation{box("mug", 1, 1, 2, 2)}))
	require.Len(t, snapshot, 1)
	require.Len(t, store.Frames(), 2)
}
