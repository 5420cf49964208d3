package pose

import (
	"errors"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoLabels is returned for metadata without class labels.
var ErrNoLabels = errors.New("metadata has no labels")

// Default tensor names used when metadata.json does not name them.
const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

// Metadata describes an exported pose classification model.
// It is a superset of the metadata.json written by Teachable Machine.
type Metadata struct {
	ModelName   string   `json:"modelName"`
	TMVersion   string   `json:"tmVersion,omitempty"`
	PackageName string   `json:"packageName,omitempty"`
	Labels      []string `json:"labels"`

	// InputName and OutputName name the ONNX tensors.
	InputName  string `json:"inputName,omitempty"`
	OutputName string `json:"outputName,omitempty"`
	// InputSize is the length of the pose vector the classifier consumes.
	InputSize int `json:"inputSize"`
	// Softmax applies a softmax to raw logits.
	Softmax bool `json:"softmax,omitempty"`
}

// LoadMetadata reads and validates a metadata.json file.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return ParseMetadata(data)
}

// ParseMetadata decodes and validates metadata.json contents.
func ParseMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	for i, label := range m.Labels {
		m.Labels[i] = strings.TrimSpace(label)
	}
	if len(m.Labels) == 0 {
		return nil, ErrNoLabels
	}
	if m.InputSize <= 0 {
		return nil, fmt.Errorf("parse metadata: inputSize must be positive, got %d", m.InputSize)
	}
	if m.InputName == "" {
		m.InputName = DefaultInputName
	}
	if m.OutputName == "" {
		m.OutputName = DefaultOutputName
	}

	return &m, nil
}
