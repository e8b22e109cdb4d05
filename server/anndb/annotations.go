package anndb

import (
	"errors"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/vidlabel/pkg/voc"
	"gorm.io/gorm"
)

// SetFrame replaces the annotation set of one frame of a video, and bumps the
// owning project's updated_at timestamp in the same transaction.
// An empty set is stored, not deleted, so that "annotated, but nothing in the
// frame" survives a reload.
func (a *AnnDB) SetFrame(videoID int64, frame int, objects []voc.Annotation) error {
	video, err := a.GetVideo(videoID)
	if err != nil {
		return err
	}
	now := dbh.MakeIntTime(time.Now())

	tx := a.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	existing := Annotation{}
	err = tx.Where("video_id = ? AND frame = ?", videoID, frame).First(&existing).Error
	if err == nil {
		existing.Objects = dbh.MakeJSONField(objects)
		existing.ModifiedAt = now
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		ann := Annotation{
			VideoID:    videoID,
			Frame:      frame,
			Objects:    dbh.MakeJSONField(objects),
			ModifiedAt: now,
		}
		if err := tx.Create(&ann).Error; err != nil {
			return err
		}
	} else {
		return err
	}

	if err := tx.Model(&Project{}).Where("id = ?", video.ProjectID).Update("updated_at", now).Error; err != nil {
		return err
	}
	return tx.Commit().Error
}

// GetFrame returns one frame's annotation set.
// A frame that has never been annotated returns nil. A frame that was
// explicitly annotated with zero objects returns an empty slice.
func (a *AnnDB) GetFrame(videoID int64, frame int) ([]voc.Annotation, error) {
	ann := Annotation{}
	err := a.DB.Where("video_id = ? AND frame = ?", videoID, frame).First(&ann).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return annotationObjects(&ann), nil
}

// VideoAnnotations returns every annotated frame of a video
func (a *AnnDB) VideoAnnotations(videoID int64) (map[int][]voc.Annotation, error) {
	var anns []Annotation
	if err := a.DB.Where("video_id = ?", videoID).Find(&anns).Error; err != nil {
		return nil, err
	}
	frames := map[int][]voc.Annotation{}
	for i := range anns {
		frames[anns[i].Frame] = annotationObjects(&anns[i])
	}
	return frames, nil
}

// SaveFunc returns a voc.SaveFunc bound to one video, for wiring a voc.Store
// to the database.
func (a *AnnDB) SaveFunc(videoID int64) voc.SaveFunc {
	return func(frame int, objects []voc.Annotation) error {
		return a.SetFrame(videoID, frame, objects)
	}
}

func annotationObjects(ann *Annotation) []voc.Annotation {
	if ann.Objects == nil || ann.Objects.Data == nil {
		return []voc.Annotation{}
	}
	return ann.Objects.Data
}

type VideoStats struct {
	TotalObjects    int `json:"totalObjects"`
	AnnotatedFrames int `json:"annotatedFrames"` // Frames with at least one object
	RemainingFrames int `json:"remainingFrames"`
}

func (a *AnnDB) GetVideoStats(videoID int64) (*VideoStats, error) {
	video, err := a.GetVideo(videoID)
	if err != nil {
		return nil, err
	}
	frames, err := a.VideoAnnotations(videoID)
	if err != nil {
		return nil, err
	}
	stats := VideoStats{}
	for _, objects := range frames {
		stats.TotalObjects += len(objects)
		if len(objects) > 0 {
			stats.AnnotatedFrames++
		}
	}
	stats.RemainingFrames = max(0, video.FrameCount-stats.AnnotatedFrames)
	return &stats, nil
}
