package pose

import (
	"fmt"
	"path/filepath"
)

// Model file names inside a model directory.
const (
	ModelFile    = "model.onnx"
	MetadataFile = "metadata.json"
)

// LoadConfig describes where to find a model and its runtime.
type LoadConfig struct {
	// Dir contains model.onnx and metadata.json.
	Dir string
	// ORTLibrary is the ONNX Runtime shared library path.
	ORTLibrary string
	// Estimator configures the pose service.
	Estimator EstimatorConfig
}

// Load reads the model metadata, opens the ONNX classifier and prepares the
// pose estimator. Any failure is fatal for a detection session.
func Load(cfg LoadConfig) (*Model, error) {
	meta, err := LoadMetadata(filepath.Join(cfg.Dir, MetadataFile))
	if err != nil {
		return nil, err
	}

	if err := InitRuntime(cfg.ORTLibrary); err != nil {
		return nil, err
	}

	estimator, err := NewMediaPipeEstimator(cfg.Estimator)
	if err != nil {
		return nil, fmt.Errorf("pose estimator: %w", err)
	}

	classifier, err := NewONNXClassifier(filepath.Join(cfg.Dir, ModelFile), *meta)
	if err != nil {
		estimator.Close()
		return nil, fmt.Errorf("load classifier: %w", err)
	}

	return &Model{Estimator: estimator, Classifier: classifier}, nil
}
