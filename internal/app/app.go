// Package app runs a detection session: it opens the webcam, loads the pose
// model and feeds every frame's predictions into the trigger state machine.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/trigger"
)

// Session status texts.
const (
	StatusWebcamFailed    = "Webcam initialization failed!"
	StatusModelFailed     = "Model loading failed!"
	StatusModelLoaded     = "Model loaded!"
	StatusPredictionError = "Prediction error! See console."
)

// readWarnEvery limits how often a failing webcam is reported.
const readWarnEvery = 5 * time.Second

// Loader loads the pose model for a session.
type Loader func() (*pose.Model, error)

// Config holds the collaborators of a session.
type Config struct {
	// Camera is the webcam. Required.
	Camera capture.Camera
	// Load loads the model after the webcam is open. Required.
	Load Loader
	// Sink receives sounds, images and status texts.
	Sink trigger.Sink
	// Frames receives every frame read, for rendering. Optional.
	Frames *capture.FrameBuffer
	// Logger defaults to a discarding logger.
	Logger logrus.FieldLogger
	// Interval between ticks. Defaults to one camera frame.
	Interval time.Duration
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// App is one detection session.
type App struct {
	config      Config
	camera      capture.Camera
	sink        trigger.Sink
	logger      logrus.FieldLogger
	machine     *trigger.Machine
	readLimiter *rate.Limiter
	model       *pose.Model

	mu              sync.RWMutex
	enabled         bool
	interrupted     bool
	running         bool
	lastEvent       *trigger.Event
	listeners       []func(trigger.Event)
	enabledHandlers []func(bool)
}

// New creates an App. Detection starts enabled.
func New(config Config) *App {
	if config.Logger == nil {
		config.Logger = log.Discard()
	}
	if config.Interval <= 0 {
		config.Interval = time.Second / time.Duration(capture.DefaultFPS)
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	a := &App{
		config:      config,
		camera:      config.Camera,
		sink:        config.Sink,
		logger:      config.Logger,
		readLimiter: rate.NewLimiter(rate.Every(readWarnEvery), 1),
		enabled:     true,
	}
	a.machine = trigger.NewMachine(trigger.DefaultConfig(), config.Sink)
	a.machine.OnTrigger(a.handleTrigger)
	return a
}

// Run opens the webcam and the model, then processes frames until ctx is
// done. Webcam and model failures end the session before any frame is read.
func (a *App) Run(ctx context.Context) error {
	if err := a.open(); err != nil {
		return err
	}
	defer a.close()

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	a.logger.WithField("interval", a.config.Interval).Info("Detection loop started")
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Detection loop stopped")
			return nil
		case <-ticker.C:
			a.tick(a.config.Now())
		}
	}
}

// open performs the session-fatal setup steps in order.
func (a *App) open() error {
	if err := a.camera.Open(); err != nil {
		a.logger.WithError(err).Error("Webcam initialization failed")
		a.setStatus(StatusWebcamFailed)
		return fmt.Errorf("open webcam: %w", err)
	}
	a.camera.SetFPS(capture.DefaultFPS)

	model, err := a.config.Load()
	if err != nil {
		a.logger.WithError(err).Error("Model loading failed")
		a.setStatus(StatusModelFailed)
		a.camera.Close()
		return fmt.Errorf("load model: %w", err)
	}
	a.model = model

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	a.logger.WithField("labels", model.Labels()).Info("Model loaded")
	a.setStatus(StatusModelLoaded)
	return nil
}

func (a *App) close() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	if err := a.model.Close(); err != nil {
		a.logger.WithError(err).Warn("Error closing model")
	}
	if err := a.camera.Close(); err != nil {
		a.logger.WithError(err).Warn("Error closing webcam")
	}
}

// tick processes one frame at time now.
func (a *App) tick(now time.Time) {
	a.machine.Advance(now)

	if !a.IsEnabled() {
		return
	}
	if a.takeInterrupted() {
		a.machine.ClearHolds()
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		if a.readLimiter.Allow() {
			a.logger.WithError(err).Warn("Error reading frame")
		}
		return
	}
	defer frame.Close()

	if a.config.Frames != nil {
		if err := a.config.Frames.Update(frame); err != nil {
			a.logger.WithError(err).Debug("Frame not buffered")
		}
	}

	predictions, err := a.model.Predict(frame)
	switch {
	case errors.Is(err, pose.ErrNoPose):
		// Nobody in frame: the hold is broken but the display is left alone.
		a.machine.ClearHolds()
		return
	case err != nil:
		a.logger.WithError(err).Error("Prediction failed")
		a.machine.ClearHolds()
		a.setStatus(StatusPredictionError)
		return
	}

	a.machine.Observe(now, predictions)
}

func (a *App) handleTrigger(ev trigger.Event) {
	a.logger.WithFields(log.Fields{
		"class":   ev.ClassName,
		"average": fmt.Sprintf("%.2f", ev.Probability),
		"event":   ev.ID,
	}).Info("Gesture triggered")

	a.mu.Lock()
	a.lastEvent = &ev
	listeners := append([]func(trigger.Event){}, a.listeners...)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func (a *App) setStatus(text string) {
	if a.sink != nil {
		a.sink.SetStatus(text)
	}
}

func (a *App) takeInterrupted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	interrupted := a.interrupted
	a.interrupted = false
	return interrupted
}

// OnTrigger registers fn to be called on the loop goroutine after every trigger.
func (a *App) OnTrigger(fn func(trigger.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// OnEnabledChange registers fn to be called whenever SetEnabled changes the
// enabled state, whoever made the change.
func (a *App) OnEnabledChange(fn func(enabled bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabledHandlers = append(a.enabledHandlers, fn)
}

// SetEnabled enables or disables detection. Re-enabling interrupts every
// hold so a pose held before the pause cannot complete; cooldowns and the
// display sequence carry on.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	if enabled == a.enabled {
		a.mu.Unlock()
		return
	}
	if enabled {
		a.interrupted = true
	}
	a.enabled = enabled
	handlers := append([]func(bool){}, a.enabledHandlers...)
	a.mu.Unlock()

	for _, fn := range handlers {
		fn(enabled)
	}
}

// IsEnabled returns whether detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Running reports whether the detection loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// LastEvent returns the most recent trigger.
func (a *App) LastEvent() (trigger.Event, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastEvent == nil {
		return trigger.Event{}, false
	}
	return *a.lastEvent, true
}
