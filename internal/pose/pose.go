// Package pose wraps the external pose estimation and classification models
// behind a single classify(frame) capability.
package pose

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/trigger"
)

// Body keypoint names following the PoseNet convention.
const (
	Nose          = "nose"
	LeftEye       = "leftEye"
	RightEye      = "rightEye"
	LeftEar       = "leftEar"
	RightEar      = "rightEar"
	LeftShoulder  = "leftShoulder"
	RightShoulder = "rightShoulder"
	LeftElbow     = "leftElbow"
	RightElbow    = "rightElbow"
	LeftWrist     = "leftWrist"
	RightWrist    = "rightWrist"
	LeftHip       = "leftHip"
	RightHip      = "rightHip"
	LeftKnee      = "leftKnee"
	RightKnee     = "rightKnee"
	LeftAnkle     = "leftAnkle"
	RightAnkle    = "rightAnkle"
	NumKeypoints  = 17
)

// Keypoint is one detected body part in frame pixel coordinates.
type Keypoint struct {
	Part  string  `json:"part"`
	Score float64 `json:"score"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Pose is the output of pose estimation for one frame.
type Pose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score"`
	// Output is the flattened pose network activation the classifier consumes.
	Output []float32 `json:"output"`
}

// Keypoint returns the keypoint for part.
func (p *Pose) Keypoint(part string) (Keypoint, bool) {
	if p == nil {
		return Keypoint{}, false
	}
	for _, k := range p.Keypoints {
		if k.Part == part {
			return k, true
		}
	}
	return Keypoint{}, false
}

// Estimator turns a frame into a pose descriptor.
type Estimator interface {
	// EstimatePose returns the pose found in frame, or nil when nobody is visible.
	EstimatePose(frame *gocv.Mat) (*Pose, error)

	// Close releases any resources held by the estimator.
	Close() error
}

// Classifier turns a pose descriptor into per-label probabilities.
type Classifier interface {
	// Classify returns one prediction per label, in label order.
	Classify(pose *Pose) ([]trigger.Prediction, error)

	// Labels returns the class labels known to the classifier.
	Labels() []string

	// Close releases any resources held by the classifier.
	Close() error
}

// ErrNoPose is returned by Predict when the frame holds nobody.
var ErrNoPose = errors.New("no pose in frame")

// Model chains an Estimator and a Classifier.
type Model struct {
	Estimator  Estimator
	Classifier Classifier
}

// Predict estimates the pose in frame and classifies it. It returns ErrNoPose
// when the estimator found nobody; predictions are then not meaningful.
func (m *Model) Predict(frame *gocv.Mat) ([]trigger.Prediction, error) {
	p, err := m.Estimator.EstimatePose(frame)
	if err != nil {
		return nil, fmt.Errorf("estimate pose: %w", err)
	}
	if p == nil || len(p.Output) == 0 {
		return nil, ErrNoPose
	}

	predictions, err := m.Classifier.Classify(p)
	if err != nil {
		return nil, fmt.Errorf("classify pose: %w", err)
	}
	return predictions, nil
}

// Labels returns the classifier's labels.
func (m *Model) Labels() []string {
	return m.Classifier.Labels()
}

// Close releases both models.
func (m *Model) Close() error {
	var errs []error
	if m.Estimator != nil {
		errs = append(errs, m.Estimator.Close())
	}
	if m.Classifier != nil && any(m.Classifier) != any(m.Estimator) {
		errs = append(errs, m.Classifier.Close())
	}
	return errors.Join(errs...)
}
