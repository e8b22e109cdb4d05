package gen

type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

type Float interface {
	~float32 | ~float64
}

type Ordered interface {
	Integer | Float | ~string
}

// DeleteFirst removes the first occurrence of v from the slice, and returns the modified slice
func DeleteFirst[T comparable](slice []T, v T) []T {
	for i := range slice {
		if slice[i] == v {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}

// IndexOf returns the index of the first occurrence of v, or -1
func IndexOf[T comparable](slice []T, v T) int {
	for i := range slice {
		if slice[i] == v {
			return i
		}
	}
	return -1
}

// CopySlice returns a shallow copy of the slice
func CopySlice[T any](slice []T) []T {
	c := make([]T, len(slice))
	copy(c, slice)
	return c
}
