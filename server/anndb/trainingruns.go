package anndb

import (
	"time"

	"github.com/cyclopcam/dbh"
)

func (a *AnnDB) CreateTrainingRun(projectID, videoID int64) (*TrainingRun, error) {
	run := TrainingRun{
		ProjectID: projectID,
		VideoID:   videoID,
		State:     TrainingRunStateQueued,
		CreatedAt: dbh.MakeIntTime(time.Now()),
	}
	if err := a.DB.Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (a *AnnDB) GetTrainingRun(id int64) (*TrainingRun, error) {
	run := TrainingRun{}
	if err := a.DB.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (a *AnnDB) ProjectTrainingRuns(projectID int64) ([]TrainingRun, error) {
	var runs []TrainingRun
	return runs, a.DB.Where("project_id = ?", projectID).Order("created_at DESC").Find(&runs).Error
}

func (a *AnnDB) MarkTrainingRunStarted(id int64) error {
	return a.DB.Model(&TrainingRun{}).Where("id = ?", id).
		Updates(map[string]any{
			"state":      TrainingRunStateRunning,
			"started_at": dbh.MakeIntTime(time.Now()),
		}).Error
}

// AppendTrainingMetrics records one epoch's metrics on a running training run
func (a *AnnDB) AppendTrainingMetrics(id int64, m EpochMetrics) error {
	run, err := a.GetTrainingRun(id)
	if err != nil {
		return err
	}
	metrics := []EpochMetrics{}
	if run.Metrics != nil {
		metrics = run.Metrics.Data
	}
	metrics = append(metrics, m)
	return a.DB.Model(&TrainingRun{}).Where("id = ?", id).
		Updates(map[string]any{
			"metrics": dbh.MakeJSONField(metrics),
			"epochs":  len(metrics),
		}).Error
}

// MarkTrainingRunFinished transitions a run to finished or failed.
// modelFile is the storage path of the uploaded weights (empty on failure).
func (a *AnnDB) MarkTrainingRunFinished(id int64, modelFile string, runErr error) error {
	updates := map[string]any{
		"finished_at": dbh.MakeIntTime(time.Now()),
		"model_file":  modelFile,
	}
	if runErr != nil {
		updates["state"] = TrainingRunStateFailed
		updates["error"] = runErr.Error()
	} else {
		updates["state"] = TrainingRunStateFinished
	}
	return a.DB.Model(&TrainingRun{}).Where("id = ?", id).Updates(updates).Error
}
