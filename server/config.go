package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/vidlabel/pkg/kibi"
)

// Config is the vidlabel service configuration, read from a JSON file.
type Config struct {
	DB               string         `json:"db"`               // Path to the SQLite database file
	Storage          StorageConfig  `json:"storage"`          // Where video and model blobs live
	CacheDir         string         `json:"cacheDir"`         // Local copies of blob store files, for seeking and ffmpeg
	CacheSize        string         `json:"cacheSize"`        // Max size of the local cache, eg "256MB"
	Upload           UploadConfig   `json:"upload"`           // Video upload size policy
	SeekableMaxWidth int            `json:"seekableMaxWidth"` // Scale the seekable preview down to this width (0 = no scaling)
	ValidateWrites   bool           `json:"validateWrites"`   // Reject malformed annotations (inverted boxes, unknown classes) at write time
	Detector         DetectorConfig `json:"detector"`
	Train            TrainConfig    `json:"train"`
	HTTPS            *HTTPSConfig   `json:"https"` // If set, serve public HTTPS with automatic certificates

	CacheBytes int64 `json:"-"` // Parsed CacheSize
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the filesystem
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
	Public bool   `json:"public"` // Whether the bucket is public. This allows us to give clients direct URLs into GCS, instead of passing the data through our service
}

// UploadConfig is the video upload size policy. Uploads above WarnSize
// succeed, but the response carries a warning. Uploads above RejectSize are
// refused.
type UploadConfig struct {
	WarnSize   string `json:"warnSize"`   // eg "200MB"
	RejectSize string `json:"rejectSize"` // eg "500MB"

	WarnBytes   int64 `json:"-"`
	RejectBytes int64 `json:"-"`
}

type DetectorConfig struct {
	Model          string `json:"model"`          // Path to a .onnx object detection model. Empty disables the detector.
	OnnxLibrary    string `json:"onnxLibrary"`    // Optional path to the ONNX Runtime shared library (eg /usr/lib/libonnxruntime.so)
	MaxVideoHeight int    `json:"maxVideoHeight"` // Scale video down to this height before inference (0 = native resolution)
	FrameStride    int    `json:"frameStride"`    // Default frame stride when the client doesn't specify one
	MinSize        int    `json:"minSize"`        // Ignore detections smaller than this, in pixels
}

type TrainConfig struct {
	// Trainer command argv. The tokens {dataset} and {model} are replaced with
	// the dataset zip path and the output weights path, eg
	// ["python3", "train.py", "--data", "{dataset}", "--out", "{model}"].
	// Empty disables training.
	Command  []string `json:"command"`
	ModelExt string   `json:"modelExt"` // Extension of the trained weights file, eg ".onnx"
}

type HTTPSConfig struct {
	Domain  string `json:"domain"`
	Email   string `json:"email"`   // ACME account email
	CertDir string `json:"certDir"` // Certificate storage directory
}

// LoadConfig reads and validates a config file, and fills in defaults.
func LoadConfig(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error parsing config file %v: %w", filename, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("Invalid config file %v: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB == "" {
		return fmt.Errorf("'db' must be set (path to the SQLite database file)")
	}
	if c.Storage.Filesystem == nil && c.Storage.GCS == nil {
		return fmt.Errorf("One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(os.TempDir(), "vidlabel-cache")
	}
	var err error
	if c.CacheBytes, err = parseSize(c.CacheSize, 256*1024*1024); err != nil {
		return fmt.Errorf("Invalid cacheSize '%v': %w", c.CacheSize, err)
	}
	if c.Upload.WarnBytes, err = parseSize(c.Upload.WarnSize, 200*1024*1024); err != nil {
		return fmt.Errorf("Invalid upload.warnSize '%v': %w", c.Upload.WarnSize, err)
	}
	if c.Upload.RejectBytes, err = parseSize(c.Upload.RejectSize, 500*1024*1024); err != nil {
		return fmt.Errorf("Invalid upload.rejectSize '%v': %w", c.Upload.RejectSize, err)
	}
	if c.Upload.WarnBytes > c.Upload.RejectBytes {
		return fmt.Errorf("upload.warnSize (%v) may not exceed upload.rejectSize (%v)", c.Upload.WarnSize, c.Upload.RejectSize)
	}
	if c.SeekableMaxWidth == 0 {
		c.SeekableMaxWidth = 1280
	}
	if c.Detector.FrameStride < 1 {
		c.Detector.FrameStride = 1
	}
	if c.Train.ModelExt == "" {
		c.Train.ModelExt = ".onnx"
	}
	if c.HTTPS != nil {
		if c.HTTPS.Domain == "" {
			return fmt.Errorf("'https.domain' must be set when 'https' is configured")
		}
		if c.HTTPS.CertDir == "" {
			home, _ := os.UserHomeDir()
			c.HTTPS.CertDir = filepath.Join(home, ".local", "share", "certmagic")
		}
	}
	return nil
}

func parseSize(v string, defaultBytes int64) (int64, error) {
	if v == "" {
		return defaultBytes, nil
	}
	return kibi.ParseBytes(v)
}
