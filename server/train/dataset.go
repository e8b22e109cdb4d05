package train

import (
	"archive/zip"
	"fmt"
	"io"
	"sort"

	"github.com/cyclopcam/vidlabel/pkg/voc"
	"github.com/cyclopcam/vidlabel/server/anndb"
)

// WriteVideoDataset writes one video's export archive: the original video
// file plus one PASCAL VOC XML document per annotated frame.
func (t *Trainer) WriteVideoDataset(w io.Writer, video *anndb.Video) error {
	frames, err := t.db.VideoAnnotations(video.ID)
	if err != nil {
		return err
	}
	docs, err := voc.Encode(frames, video.VideoName(), video.FrameShape())
	if err != nil {
		return err
	}
	src, err := t.cache.Open(video.OriginalBlob())
	if err != nil {
		return err
	}
	defer src.Close()
	return voc.WriteArchive(w, src, video.Filename, video.VideoName(), docs)
}

// WriteProjectDataset writes an archive with one directory per annotated
// video (video_<id>/), each holding the video file and its VOC documents.
// Videos with no annotated frames are skipped.
func (t *Trainer) WriteProjectDataset(w io.Writer, project *anndb.Project) error {
	videos, err := t.db.ProjectVideos(project.ID)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	for i := range videos {
		video := &videos[i]
		frames, err := t.db.VideoAnnotations(video.ID)
		if err != nil {
			return err
		}
		docs, err := voc.Encode(frames, video.VideoName(), video.FrameShape())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			continue
		}
		dir := fmt.Sprintf("video_%v", video.ID)
		vz, err := zw.Create(dir + "/" + video.Filename)
		if err != nil {
			return err
		}
		if err := t.copyBlob(vz, video.OriginalBlob()); err != nil {
			return err
		}
		indexes := make([]int, 0, len(docs))
		for frame := range docs {
			indexes = append(indexes, frame)
		}
		sort.Ints(indexes)
		for _, frame := range indexes {
			dz, err := zw.Create(dir + "/" + voc.DocFilename(video.VideoName(), frame))
			if err != nil {
				return err
			}
			if _, err := dz.Write([]byte(docs[frame])); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

func (t *Trainer) copyBlob(dst io.Writer, name string) error {
	src, err := t.cache.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}
