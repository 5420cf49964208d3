package pose

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/trigger"
)

// Mock is a test implementation of both Estimator and Classifier.
// It allows tests to control poses, predictions and failures.
type Mock struct {
	mu          sync.Mutex
	pose        *Pose
	predictions []trigger.Prediction
	labels      []string
	estimateErr error
	classifyErr error
	calls       int
}

// NewMock creates a Mock that sees a person and predicts nothing.
func NewMock(labels ...string) *Mock {
	return &Mock{
		pose:   &Pose{Score: 1, Output: []float32{0}},
		labels: labels,
	}
}

// Model wraps the mock as a Model.
func (m *Mock) Model() *Model {
	return &Model{Estimator: m, Classifier: m}
}

// SetPose sets the pose returned by EstimatePose. nil means nobody in frame.
func (m *Mock) SetPose(p *Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = p
}

// SetPredictions sets the predictions returned by Classify.
func (m *Mock) SetPredictions(predictions []trigger.Prediction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = predictions
}

// SetEstimateError sets the error returned by EstimatePose.
func (m *Mock) SetEstimateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.estimateErr = err
}

// SetClassifyError sets the error returned by Classify.
func (m *Mock) SetClassifyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifyErr = err
}

// Calls returns how many times EstimatePose was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// EstimatePose returns the pre-configured pose or error.
func (m *Mock) EstimatePose(frame *gocv.Mat) (*Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.estimateErr != nil {
		return nil, m.estimateErr
	}
	return m.pose, nil
}

// Classify returns the pre-configured predictions or error.
func (m *Mock) Classify(p *Pose) ([]trigger.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.classifyErr != nil {
		return nil, m.classifyErr
	}
	out := make([]trigger.Prediction, len(m.predictions))
	copy(out, m.predictions)
	return out, nil
}

// Labels returns the configured labels.
func (m *Mock) Labels() []string {
	return m.labels
}

// Close is a no-op for the mock.
func (m *Mock) Close() error {
	return nil
}
