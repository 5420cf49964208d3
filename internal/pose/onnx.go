package pose

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ayusman/mudra/internal/trigger"
)

var ortMu sync.Mutex

// InitRuntime loads the ONNX Runtime shared library once per process.
// An empty libPath lets onnxruntime_go use its platform default.
func InitRuntime(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnx runtime: %w", err)
	}
	return nil
}

// ShutdownRuntime releases the ONNX Runtime environment.
func ShutdownRuntime() error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXClassifier classifies pose vectors with an ONNX model of shape
// [1, InputSize] -> [1, len(Labels)].
type ONNXClassifier struct {
	meta    Metadata
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
}

// NewONNXClassifier creates a session for the model at modelPath.
// InitRuntime must have been called.
func NewONNXClassifier(modelPath string, meta Metadata) (*ONNXClassifier, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(meta.InputSize)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(meta.Labels))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{meta.InputName},
		[]string{meta.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &ONNXClassifier{
		meta:    meta,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Classify runs the model on the pose vector.
func (c *ONNXClassifier) Classify(p *Pose) ([]trigger.Prediction, error) {
	if p == nil {
		return nil, ErrNoPose
	}
	if len(p.Output) != c.meta.InputSize {
		return nil, fmt.Errorf("pose vector has %d values, model expects %d", len(p.Output), c.meta.InputSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.input.GetData(), p.Output)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}

	return toPredictions(c.meta.Labels, c.output.GetData(), c.meta.Softmax)
}

// Labels returns the model's class labels.
func (c *ONNXClassifier) Labels() []string {
	out := make([]string, len(c.meta.Labels))
	copy(out, c.meta.Labels)
	return out
}

// Close destroys the session and its tensors.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.session != nil {
		err = c.session.Destroy()
		c.session = nil
	}
	if c.input != nil {
		c.input.Destroy()
		c.input = nil
	}
	if c.output != nil {
		c.output.Destroy()
		c.output = nil
	}
	return err
}

// toPredictions pairs scores with labels, clamping probabilities to [0,1].
func toPredictions(labels []string, scores []float32, softmax bool) ([]trigger.Prediction, error) {
	if len(scores) < len(labels) {
		return nil, fmt.Errorf("model returned %d scores for %d labels", len(scores), len(labels))
	}

	probs := make([]float64, len(labels))
	for i := range labels {
		probs[i] = float64(scores[i])
	}
	if softmax {
		probs = softmaxOf(probs)
	}

	predictions := make([]trigger.Prediction, len(labels))
	for i, label := range labels {
		p := probs[i]
		if math.IsNaN(p) {
			p = 0
		}
		predictions[i] = trigger.Prediction{
			ClassName:   label,
			Probability: math.Min(1, math.Max(0, p)),
		}
	}
	return predictions, nil
}

func softmaxOf(logits []float64) []float64 {
	if len(logits) == 0 {
		return logits
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		maxLogit = math.Max(maxLogit, v)
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
