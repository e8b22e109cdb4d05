package anndb

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/vidlabel/pkg/voc"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

type User struct {
	BaseModel
	Email     string      `json:"email"`
	Password  string      `json:"-"` // scrypt hash (pkg/pwdhash). Empty = no password set.
	CreatedAt dbh.IntTime `json:"createdAt"`
}

type Session struct {
	Key       string      `gorm:"primaryKey" json:"-"` // Hash of the session token. The plaintext token lives only in the client's cookie.
	UserID    int64       `json:"userID"`
	CreatedAt dbh.IntTime `json:"createdAt"`
	ExpiresAt dbh.IntTime `json:"expiresAt"` // Zero = no expiry
}

type Project struct {
	BaseModel
	UserID    int64                    `json:"userID"`
	Name      string                   `json:"name"`
	Classes   *dbh.JSONField[[]string] `json:"classes"`
	CreatedAt dbh.IntTime              `json:"createdAt"`
	UpdatedAt dbh.IntTime              `json:"updatedAt"` // Bumped on every annotation write
}

// ClassList returns the project's classes (never nil)
func (p *Project) ClassList() []string {
	if p.Classes == nil {
		return []string{}
	}
	return p.Classes.Data
}

type Video struct {
	BaseModel
	ProjectID  int64       `json:"projectID"`
	Filename   string      `json:"filename"` // Original filename, without any path (eg "cups.mp4")
	Size       int64       `json:"size"`     // Bytes
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	FPS        float64     `json:"fps"`
	Duration   float64     `json:"duration"` // Seconds
	FrameCount int         `json:"frameCount"`
	CreatedAt  dbh.IntTime `json:"createdAt"`
}

// VideoName is the filename without its extension. This is the name that VOC
// documents and export archives are built from.
func (v *Video) VideoName() string {
	return strings.TrimSuffix(v.Filename, filepath.Ext(v.Filename))
}

// FrameShape returns the video's frame dimensions for VOC export
func (v *Video) FrameShape() voc.FrameShape {
	return voc.FrameShape{
		Height: v.Height,
		Width:  v.Width,
		Depth:  3,
	}
}

// Videos live in blob storage under videos/<id>/.
// OriginalBlob is the file exactly as uploaded. SeekableBlob is a re-encode
// with dense keyframes for browser scrubbing. ThumbBlob is a JPEG thumbnail.

func (v *Video) OriginalBlob() string {
	return fmt.Sprintf("videos/%v/original%v", v.ID, strings.ToLower(filepath.Ext(v.Filename)))
}

func (v *Video) SeekableBlob() string {
	return fmt.Sprintf("videos/%v/seekable.mp4", v.ID)
}

func (v *Video) ThumbBlob() string {
	return fmt.Sprintf("videos/%v/thumb.jpg", v.ID)
}

// ModelBlob is the storage path of a training run's weights
func ModelBlob(runID int64, ext string) string {
	return fmt.Sprintf("models/%v/model%v", runID, ext)
}

// Annotation holds the complete object set of one frame of one video
type Annotation struct {
	BaseModel
	VideoID    int64                            `json:"videoID"`
	Frame      int                              `json:"frame"`
	Objects    *dbh.JSONField[[]voc.Annotation] `json:"objects"`
	ModifiedAt dbh.IntTime                      `json:"modifiedAt"`
}

type TrainingRunState string

const (
	TrainingRunStateQueued   TrainingRunState = "queued"
	TrainingRunStateRunning  TrainingRunState = "running"
	TrainingRunStateFinished TrainingRunState = "finished"
	TrainingRunStateFailed   TrainingRunState = "failed"
)

// EpochMetrics is one line of the trainer's per-epoch JSON output
type EpochMetrics struct {
	Epoch int     `json:"epoch"`
	Loss  float64 `json:"loss"`
	MAP   float64 `json:"mAP"`
}

type TrainingRun struct {
	BaseModel
	ProjectID  int64                          `json:"projectID"`
	VideoID    int64                          `json:"videoID"` // 0 = train on every video in the project
	State      TrainingRunState               `json:"state"`
	Error      string                         `json:"error"`
	Epochs     int                            `json:"epochs"`
	Metrics    *dbh.JSONField[[]EpochMetrics] `json:"metrics"`
	ModelFile  string                         `json:"modelFile"` // Storage path of the trained weights (eg "models/3/model.onnx")
	CreatedAt  dbh.IntTime                    `json:"createdAt"`
	StartedAt  dbh.IntTime                    `json:"startedAt"`
	FinishedAt dbh.IntTime                    `json:"finishedAt"`
}
