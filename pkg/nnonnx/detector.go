// Package nnonnx runs object detection models with ONNX Runtime.
// It implements the nn.ObjectDetector interface for YOLOv8-family models
// exported to .onnx files.
package nnonnx

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cyclopcam/vidlabel/pkg/nn"
	ort "github.com/yalue/onnxruntime_go"
)

var libraryPath string
var initOnce sync.Once
var initErr error

// SetLibraryPath overrides the location of the ONNX Runtime shared library
// (eg /usr/lib/libonnxruntime.so). You must call this before creating the
// first Detector, or not at all, in which case onnxruntime_go searches the
// standard system paths.
func SetLibraryPath(path string) {
	libraryPath = path
}

func initEnvironment() error {
	initOnce.Do(func() {
		if libraryPath != "" {
			if _, err := os.Stat(libraryPath); err != nil {
				initErr = fmt.Errorf("ONNX Runtime library not found at '%v': %w", libraryPath, err)
				return
			}
			ort.SetSharedLibraryPath(libraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// Detector runs a YOLOv8 model via ONNX Runtime
type Detector struct {
	config       *nn.ModelConfig
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	numBoxes     int

	// The session owns a single input/output tensor pair, so only one
	// inference can be in flight at a time.
	runLock sync.Mutex
}

// NewDetector loads a .onnx model from disk.
// The model config is read from a sibling JSON file (eg "model.json" next to
// "model.onnx"). If there is no JSON file, we assume a stock YOLOv8 COCO
// model at 640 x 640.
func NewDetector(modelFilename string, threadingMode nn.ThreadingMode) (*Detector, error) {
	configFilename := strings.TrimSuffix(modelFilename, ".onnx") + ".json"
	config, err := nn.LoadModelConfig(configFilename)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		config = &nn.ModelConfig{
			Architecture: "yolov8",
			Width:        640,
			Height:       640,
			Classes:      nn.COCOClasses,
		}
	}
	// yolo11 dropped the "v" from the name, but kept the output layout
	if config.Architecture != "yolov8" && config.Architecture != "yolo11" {
		return nil, fmt.Errorf("Unsupported model architecture '%v'", config.Architecture)
	}
	if err := initEnvironment(); err != nil {
		return nil, err
	}

	numBoxes := yoloBoxCount(config.Width, config.Height)
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(config.Height), int64(config.Width)))
	if err != nil {
		return nil, fmt.Errorf("Error creating input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(config.Classes)), int64(numBoxes)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("Error creating output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("Error creating session options: %w", err)
	}
	defer options.Destroy()
	if threadingMode == nn.ThreadingModeSingle {
		options.SetIntraOpNumThreads(1)
		options.SetInterOpNumThreads(1)
	} else {
		options.SetIntraOpNumThreads(4)
		options.SetInterOpNumThreads(2)
	}
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(modelFilename,
		[]string{"images"}, []string{"output0"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("Failed to load ONNX model '%v': %w", modelFilename, err)
	}

	return &Detector{
		config:       config,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		numBoxes:     numBoxes,
	}, nil
}

func (d *Detector) Close() {
	d.runLock.Lock()
	defer d.runLock.Unlock()
	d.session.Destroy()
	d.inputTensor.Destroy()
	d.outputTensor.Destroy()
}

func (d *Detector) DetectObjects(img nn.ImageCrop, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	if params == nil {
		params = nn.NewDetectionParams()
	}
	probabilityThreshold := params.ProbabilityThreshold
	if probabilityThreshold <= 0 {
		probabilityThreshold = nn.DefaultProbabilityThreshold
	}
	iouThreshold := params.NmsIouThreshold
	if iouThreshold <= 0 {
		iouThreshold = nn.DefaultNmsIouThreshold
	}

	d.runLock.Lock()
	defer d.runLock.Unlock()

	if err := prepareInput(img, d.inputTensor, d.config.Width, d.config.Height); err != nil {
		return nil, err
	}
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}
	objects := decodeOutput(d.outputTensor.GetData(), d.numBoxes, len(d.config.Classes),
		d.config.Width, d.config.Height, img.CropWidth, img.CropHeight, probabilityThreshold)
	objects = nonMaxSuppression(objects, iouThreshold)
	if !params.Unclipped {
		clipToBounds(objects, img.CropWidth, img.CropHeight)
	}
	return objects, nil
}

func (d *Detector) Config() *nn.ModelConfig {
	return d.config
}
