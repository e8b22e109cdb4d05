package anndb

import (
	"path/filepath"
	"slices"
	"strings"
)

// VideoExtensions are the file types we accept for upload
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".m4v", ".3gp"}

func IsVideoFilename(filename string) bool {
	return slices.Contains(VideoExtensions, strings.ToLower(filepath.Ext(filename)))
}

func (a *AnnDB) GetVideo(id int64) (*Video, error) {
	video := Video{}
	if err := a.DB.First(&video, id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (a *AnnDB) ProjectVideos(projectID int64) ([]Video, error) {
	var videos []Video
	return videos, a.DB.Where("project_id = ?", projectID).Order("created_at").Find(&videos).Error
}

// DeleteVideo removes the video row and all of its annotations.
// The caller is responsible for deleting the bytes from storage.
func (a *AnnDB) DeleteVideo(id int64) error {
	tx := a.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()
	if err := tx.Where("video_id = ?", id).Delete(&Annotation{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&Video{}, id).Error; err != nil {
		return err
	}
	return tx.Commit().Error
}
