// Package detect runs an object detection model over entire videos, and
// writes what it finds into the annotation database, as though a very fast
// person had drawn the boxes.
package detect

import (
	"errors"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/pkg/nn"
	"github.com/cyclopcam/vidlabel/pkg/nnonnx"
	"github.com/cyclopcam/vidlabel/pkg/voc"
	"github.com/cyclopcam/vidlabel/server/anndb"
)

var ErrNoModel = errors.New("No detection model is configured")

type DetectServer struct {
	log logs.Log
	db  *anndb.AnnDB
	cfg Config

	// The detector is loaded on first use, so that the service runs fine
	// without a model (manual annotation only).
	detectorLock sync.Mutex
	detector     nn.ObjectDetector
	detectorErr  error
}

// Config mirrors the detector section of the service config
type Config struct {
	ModelFile      string // Path to a .onnx model. Empty disables detection.
	OnnxLibrary    string // Optional path to the ONNX Runtime shared library
	MaxVideoHeight int    // Scale video down to this height before inference (0 = native)
	FrameStride    int    // Default stride when the caller doesn't specify one
	MinSize        int    // Ignore detections smaller than this, in pixels
}

// PassOptions controls one detection pass over a video
type PassOptions struct {
	Classes     []string // Class names to detect. Empty = every class the model knows.
	FrameStride int      // Process every n'th frame (0 = the configured default)
	StartFrame  int
	EndFrame    int     // 0 = to the end of the video
	Threshold   float32 // Confidence threshold (0 = default)

	// Progress is called after every processed frame
	Progress func(frame, frameCount int)
}

func NewDetectServer(log logs.Log, db *anndb.AnnDB, cfg Config) *DetectServer {
	if cfg.FrameStride < 1 {
		cfg.FrameStride = 1
	}
	return &DetectServer{
		log: logs.NewPrefixLogger(log, "detect"),
		db:  db,
		cfg: cfg,
	}
}

// Enabled is true if a model is configured
func (d *DetectServer) Enabled() bool {
	return d.cfg.ModelFile != ""
}

func (d *DetectServer) Close() {
	d.detectorLock.Lock()
	defer d.detectorLock.Unlock()
	if d.detector != nil {
		d.detector.Close()
		d.detector = nil
	}
}

func (d *DetectServer) getDetector() (nn.ObjectDetector, error) {
	d.detectorLock.Lock()
	defer d.detectorLock.Unlock()
	if d.cfg.ModelFile == "" {
		return nil, ErrNoModel
	}
	if d.detector == nil && d.detectorErr == nil {
		if d.cfg.OnnxLibrary != "" {
			nnonnx.SetLibraryPath(d.cfg.OnnxLibrary)
		}
		d.detector, d.detectorErr = nnonnx.NewDetector(d.cfg.ModelFile, nn.ThreadingModeParallel)
		if d.detectorErr != nil {
			d.log.Errorf("Failed to load detection model %v: %v", d.cfg.ModelFile, d.detectorErr)
		} else {
			d.log.Infof("Loaded detection model %v (%v classes)", d.cfg.ModelFile, len(d.detector.Config().Classes))
		}
	}
	return d.detector, d.detectorErr
}

// RunVideoPass runs the detector over a video file and replaces the
// annotations of every frame where something was found. Frames where the
// detector found nothing are left alone, so a pass never erases manual work
// on other frames. Returns the number of objects found per frame.
//
// videoPath must be a local file (use the storage cache for remote blobs).
func (d *DetectServer) RunVideoPass(videoPath string, video *anndb.Video, opt PassOptions) (map[int]int, error) {
	model, err := d.getDetector()
	if err != nil {
		return nil, err
	}
	classes := opt.Classes
	if len(classes) == 0 {
		classes = model.Config().Classes
	}
	stride := opt.FrameStride
	if stride < 1 {
		stride = d.cfg.FrameStride
	}
	params := nn.NewDetectionParams()
	if opt.Threshold > 0 {
		params.ProbabilityThreshold = opt.Threshold
	}
	stats := nn.InferenceStats{}
	labels, err := nn.RunInferenceOnVideoFile(model, videoPath, nn.InferenceOptions{
		Classes:        classes,
		MinSize:        d.cfg.MinSize,
		MaxVideoHeight: d.cfg.MaxVideoHeight,
		StartFrame:     opt.StartFrame,
		EndFrame:       opt.EndFrame,
		FrameStride:    stride,
		Params:         params,
		Progress:       opt.Progress,
		Stats:          &stats,
	})
	if err != nil {
		return nil, err
	}
	d.log.Infof("Detection pass over video %v found %v objects in %v frames (decode %v, NN %v per frame)",
		video.ID, labels.TotalObjects(), len(labels.Frames), stats.DecodeTime.Average(), stats.InferenceTime.Average())
	return applyLabels(labels, video, d.db.SaveFunc(video.ID))
}

// applyLabels scales detections back to the video's native resolution and
// writes them through an annotation store, one frame at a time.
func applyLabels(labels *nn.VideoLabels, video *anndb.Video, save voc.SaveFunc) (map[int]int, error) {
	store := voc.NewStore(save)
	counts := map[int]int{}
	for _, frame := range labels.Frames {
		objects := frame.ToAnnotations(labels.Classes)
		voc.ScaleAnnotations(objects, labels.Width, labels.Height, video.Width, video.Height)
		if err := store.Set(frame.Frame, objects); err != nil {
			return counts, err
		}
		counts[frame.Frame] = len(objects)
	}
	return counts, nil
}
