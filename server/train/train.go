// Package train shells out to an external training program, feeding it a
// PASCAL VOC dataset and recording the per-epoch metrics it prints.
package train

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/pkg/rando"
	"github.com/cyclopcam/vidlabel/server/anndb"
	"github.com/cyclopcam/vidlabel/server/storage"
	"github.com/cyclopcam/vidlabel/server/storagecache"
)

var (
	ErrTrainerBusy      = errors.New("A training run is already in progress")
	ErrNoTrainerCommand = errors.New("No training command is configured")
)

// Config mirrors the train section of the service config
type Config struct {
	// Command to run, with {dataset} and {model} placeholders,
	// eg ["python3", "train.py", "--data", "{dataset}", "--out", "{model}"]
	Command []string

	// Extension of the weights file the command produces (default ".onnx")
	ModelExt string
}

type Trainer struct {
	log     logs.Log
	db      *anndb.AnnDB
	storage storage.Storage
	cache   *storagecache.StorageCache
	cfg     Config

	// One training run at a time. The GPU is not ours to share.
	busy atomic.Bool
}

func NewTrainer(log logs.Log, db *anndb.AnnDB, stor storage.Storage, cache *storagecache.StorageCache, cfg Config) *Trainer {
	if cfg.ModelExt == "" {
		cfg.ModelExt = ".onnx"
	}
	return &Trainer{
		log:     logs.NewPrefixLogger(log, "train"),
		db:      db,
		storage: stor,
		cache:   cache,
		cfg:     cfg,
	}
}

// Enabled is true if a training command is configured
func (t *Trainer) Enabled() bool {
	return len(t.cfg.Command) != 0
}

// Busy is true while a training run is in progress
func (t *Trainer) Busy() bool {
	return t.busy.Load()
}

// StartTraining creates a training run and launches it in the background.
// videoID 0 trains on every annotated video in the project.
func (t *Trainer) StartTraining(project *anndb.Project, videoID int64) (*anndb.TrainingRun, error) {
	if !t.Enabled() {
		return nil, ErrNoTrainerCommand
	}
	if !t.busy.CompareAndSwap(false, true) {
		return nil, ErrTrainerBusy
	}
	run, err := t.db.CreateTrainingRun(project.ID, videoID)
	if err != nil {
		t.busy.Store(false)
		return nil, err
	}
	go func() {
		defer t.busy.Store(false)
		t.runTraining(run, project)
	}()
	return run, nil
}

func (t *Trainer) runTraining(run *anndb.TrainingRun, project *anndb.Project) {
	t.log.Infof("Training run %v starting (project %v, video %v)", run.ID, project.ID, run.VideoID)
	modelFile, err := t.train(run, project)
	if err != nil {
		t.log.Errorf("Training run %v failed: %v", run.ID, err)
	} else {
		t.log.Infof("Training run %v finished. Weights at %v", run.ID, modelFile)
	}
	if dbErr := t.db.MarkTrainingRunFinished(run.ID, modelFile, err); dbErr != nil {
		t.log.Errorf("Failed to record final state of training run %v: %v", run.ID, dbErr)
	}
}

// train does the actual work, and returns the storage path of the weights
func (t *Trainer) train(run *anndb.TrainingRun, project *anndb.Project) (string, error) {
	if err := t.db.MarkTrainingRunStarted(run.ID); err != nil {
		return "", err
	}

	datasetFile := rando.TempFilename(".zip")
	defer os.Remove(datasetFile)
	if err := t.writeDatasetFile(datasetFile, run, project); err != nil {
		return "", err
	}

	modelFile := rando.TempFilename(t.cfg.ModelExt)
	defer os.Remove(modelFile)

	args := expandCommand(t.cfg.Command, datasetFile, modelFile)
	cmd := exec.Command(args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	stderr := bytes.Buffer{}
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("Failed to start %v: %w", args[0], err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m, ok := parseMetricLine(line); ok {
			if err := t.db.AppendTrainingMetrics(run.ID, m); err != nil {
				t.log.Warnf("Failed to record metrics of training run %v: %v", run.ID, err)
			}
		} else if strings.TrimSpace(line) != "" {
			t.log.Infof("run %v: %v", run.ID, line)
		}
	}

	if err := cmd.Wait(); err != nil {
		if tail := errorTail(stderr.String()); tail != "" {
			return "", fmt.Errorf("%w: %v", err, tail)
		}
		return "", err
	}

	weights, err := os.Open(modelFile)
	if err != nil {
		return "", fmt.Errorf("Training command succeeded, but produced no model file: %w", err)
	}
	defer weights.Close()
	blob := anndb.ModelBlob(run.ID, t.cfg.ModelExt)
	if err := storage.WriteFile(t.storage, blob, weights); err != nil {
		return "", err
	}
	return blob, nil
}

func (t *Trainer) writeDatasetFile(filename string, run *anndb.TrainingRun, project *anndb.Project) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if run.VideoID != 0 {
		video, err := t.db.GetVideo(run.VideoID)
		if err != nil {
			return err
		}
		return t.WriteVideoDataset(f, video)
	}
	return t.WriteProjectDataset(f, project)
}

// expandCommand substitutes the {dataset} and {model} placeholders
func expandCommand(command []string, datasetFile, modelFile string) []string {
	args := make([]string, len(command))
	for i, a := range command {
		a = strings.ReplaceAll(a, "{dataset}", datasetFile)
		a = strings.ReplaceAll(a, "{model}", modelFile)
		args[i] = a
	}
	return args
}

// parseMetricLine recognizes the trainer's per-epoch JSON lines, eg
// {"epoch": 3, "loss": 0.12, "mAP": 0.81}
// Anything that is not a JSON object with an "epoch" key is ordinary output.
func parseMetricLine(line string) (anndb.EpochMetrics, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return anndb.EpochMetrics{}, false
	}
	m := anndb.EpochMetrics{Epoch: -1}
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil || m.Epoch < 0 {
		return anndb.EpochMetrics{}, false
	}
	return m, true
}

// errorTail returns the last few lines of the trainer's stderr
func errorTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
