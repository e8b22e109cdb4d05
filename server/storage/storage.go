// Package storage abstracts the blob store that holds uploaded videos and
// trained model weights. There are two implementations: local filesystem,
// and Google Cloud Storage.
package storage

import (
	"errors"
	"io"
	"time"
)

var ErrNoPublicUrl = errors.New("Storage system has no public URL")
var ErrNotAFilesystem = errors.New("Storage system is not a filesystem")

// Storage is an abstraction of a blob store (eg GCS)
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	DeleteFile(name string) error

	// Filename returns the path of the blob on the local filesystem.
	// Returns ErrNotAFilesystem for remote blob stores. Use a storagecache
	// when you need a local file from a remote store (eg for ffmpeg).
	Filename(name string) (string, error)

	// URL returns a direct public URL for the blob, or ErrNoPublicUrl if the
	// store can't serve blobs publicly.
	URL(name string) (string, error)

	// FreeBytes returns the free space of the storage system, or -1 for
	// storage systems with no meaningful limit.
	FreeBytes() (int64, error)
}

// File is an element in blob storage.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

func WriteFile(s Storage, name string, content io.Reader) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	errClose := f.Close()
	if err != nil {
		return err
	}
	return errClose
}

func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}
