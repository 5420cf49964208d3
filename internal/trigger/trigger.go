// Package trigger implements the per-frame detection state machine that turns
// noisy pose predictions into discrete gesture triggers.
//
// Each class moves independently through Idle, Holding and Triggered:
// its smoothed confidence must stay at or above the threshold for the hold
// time, and a class that fired cannot fire again inside its cooldown. A
// trigger opens a display epoch that shows the class image, then the
// Completed image, then returns to Neutral.
package trigger

import (
	"fmt"
	"time"
)

// Detection constants.
const (
	// DefaultThreshold is the minimum smoothed probability for a class to count as present.
	DefaultThreshold = 0.75
	// DefaultHoldTime is how long a class must stay above threshold before it triggers.
	DefaultHoldTime = 2000 * time.Millisecond
	// DefaultCooldown is the minimum time between two triggers of the same class.
	DefaultCooldown = 3000 * time.Millisecond
	// DefaultBufferSize is the number of recent samples averaged per class.
	DefaultBufferSize = 5
	// DefaultCompletedDelay is when the Completed image replaces the class image.
	DefaultCompletedDelay = 500 * time.Millisecond
	// DefaultDisplayHold is when the display returns to Neutral after a trigger.
	DefaultDisplayHold = 5000 * time.Millisecond
)

// Reserved image names.
const (
	ImageCompleted = "Completed"
	ImageNeutral   = "Neutral"
)

// Status texts emitted by the machine.
const (
	StatusNoPredictions = "No predictions"
	StatusNoDetection   = "No detection"
)

// Prediction is one {label, probability} pair produced by a classifier for a frame.
type Prediction struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Sink receives the side effects of the state machine.
type Sink interface {
	// PlaySound plays the sound bound to class, if any.
	PlaySound(class string)
	// ShowImage shows the image named name, if any.
	ShowImage(name string)
	// SetStatus replaces the status text.
	SetStatus(text string)
}

// Config holds the detection parameters.
type Config struct {
	Threshold      float64
	HoldTime       time.Duration
	Cooldown       time.Duration
	BufferSize     int
	CompletedDelay time.Duration
	DisplayHold    time.Duration
}

// DefaultConfig returns the fixed detection parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:      DefaultThreshold,
		HoldTime:       DefaultHoldTime,
		Cooldown:       DefaultCooldown,
		BufferSize:     DefaultBufferSize,
		CompletedDelay: DefaultCompletedDelay,
		DisplayHold:    DefaultDisplayHold,
	}
}

// DetectedStatus formats the status text shown while a class is above threshold.
func DetectedStatus(class string, avg float64) string {
	return fmt.Sprintf("Detected: %s (%.2f%%)", class, avg*100)
}

// Highest returns the prediction with the highest probability.
// The first one wins on ties. ok is false for an empty slice.
func Highest(predictions []Prediction) (best Prediction, ok bool) {
	if len(predictions) == 0 {
		return Prediction{}, false
	}
	best = predictions[0]
	for _, p := range predictions[1:] {
		if p.Probability > best.Probability {
			best = p
		}
	}
	return best, true
}

type nopSink struct{}

func (nopSink) PlaySound(string) {}
func (nopSink) ShowImage(string) {}
func (nopSink) SetStatus(string) {}
