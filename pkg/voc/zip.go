package voc

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ArchiveName returns the download filename of a video's annotation archive.
func ArchiveName(videoName string) string {
	return videoName + "_annotations.zip"
}

// DocFilename returns the archive entry name of one frame's document.
func DocFilename(videoName string, frame int) string {
	return fmt.Sprintf("%v_frame_%v.xml", videoName, frame)
}

// WriteArchive writes a ZIP archive containing the unmodified video followed
// by one XML entry per document. Documents are written in ascending frame
// order, so identical inputs produce identical archives. Callers wanting
// all-or-nothing delivery should write to a buffer first (or use BuildArchive).
func WriteArchive(w io.Writer, video io.Reader, videoEntryName, videoName string, docs map[int]string) error {
	zipWriter := zip.NewWriter(w)

	videoZ, err := zipWriter.Create(videoEntryName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(videoZ, video); err != nil {
		return err
	}

	frames := make([]int, 0, len(docs))
	for frame := range docs {
		frames = append(frames, frame)
	}
	sort.Ints(frames)

	for _, frame := range frames {
		docZ, err := zipWriter.Create(DocFilename(videoName, frame))
		if err != nil {
			return err
		}
		if _, err := io.WriteString(docZ, docs[frame]); err != nil {
			return err
		}
	}

	return zipWriter.Close()
}

// BuildArchive reads the video from a local file and returns the complete
// archive as a byte buffer, ready for download. The video's entry in the
// archive is its basename.
func BuildArchive(videoPath, videoName string, docs map[int]string) ([]byte, error) {
	video, err := os.Open(videoPath)
	if err != nil {
		return nil, err
	}
	defer video.Close()
	buf := bytes.Buffer{}
	if err := WriteArchive(&buf, video, filepath.Base(videoPath), videoName, docs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
