package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/trigger"
)

type recordingSink struct {
	sounds   []string
	images   []string
	statuses []string
}

func (s *recordingSink) PlaySound(class string) { s.sounds = append(s.sounds, class) }
func (s *recordingSink) ShowImage(name string)  { s.images = append(s.images, name) }
func (s *recordingSink) SetStatus(text string)  { s.statuses = append(s.statuses, text) }

func (s *recordingSink) lastStatus() string {
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

type fixture struct {
	app    *App
	camera *capture.MockCamera
	model  *pose.Mock
	sink   *recordingSink
	frames *capture.FrameBuffer
	hook   *test.Hook
	loads  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	frame := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	logger, hook := test.NewNullLogger()
	f := &fixture{
		camera: capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		model:  pose.NewMock("up", "toleft"),
		sink:   &recordingSink{},
		frames: capture.NewFrameBuffer(),
		hook:   hook,
	}
	f.app = New(Config{
		Camera: f.camera,
		Load: func() (*pose.Model, error) {
			f.loads++
			return f.model.Model(), nil
		},
		Sink:     f.sink,
		Frames:   f.frames,
		Logger:   logger,
		Interval: 5 * time.Millisecond,
	})
	return f
}

func (f *fixture) predict(up, toleft float64) {
	f.model.SetPredictions([]trigger.Prediction{
		{ClassName: "up", Probability: up},
		{ClassName: "toleft", Probability: toleft},
	})
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// run ticks every 100ms from start to end inclusive.
func (f *fixture) run(start, end int) {
	for ms := start; ms <= end; ms += 100 {
		f.app.tick(at(ms))
	}
}

func TestApp_WebcamFailure(t *testing.T) {
	f := newFixture(t)
	f.camera.SetOpenError(errors.New("permission denied"))

	err := f.app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open webcam")

	assert.Equal(t, []string{StatusWebcamFailed}, f.sink.statuses)
	assert.Zero(t, f.loads, "model is not loaded without a webcam")
	assert.Zero(t, f.model.Calls())
	assert.False(t, f.app.Running())

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
}

func TestApp_ModelFailure(t *testing.T) {
	f := newFixture(t)
	f.app.config.Load = func() (*pose.Model, error) {
		return nil, errors.New("metadata.json missing")
	}

	err := f.app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load model")

	assert.Equal(t, []string{StatusModelFailed}, f.sink.statuses)
	assert.False(t, f.camera.IsOpen())
	assert.Zero(t, f.model.Calls())
}

func TestApp_RunUntilCancelled(t *testing.T) {
	f := newFixture(t)
	f.predict(0.1, 0.2)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, f.app.Run(ctx))

	require.NotEmpty(t, f.sink.statuses)
	assert.Equal(t, StatusModelLoaded, f.sink.statuses[0])
	assert.Equal(t, trigger.StatusNoDetection, f.sink.lastStatus())
	assert.Greater(t, f.model.Calls(), 0)
	assert.False(t, f.camera.IsOpen())
	assert.False(t, f.app.Running())

	_, _, ok := f.frames.Latest()
	assert.True(t, ok, "frames are published for rendering")
}

func TestApp_SustainedPoseTriggers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()
	assert.True(t, f.app.Running())

	var events []trigger.Event
	f.app.OnTrigger(func(ev trigger.Event) { events = append(events, ev) })

	f.predict(0.9, 0.1)
	f.run(0, 1900)
	assert.Empty(t, f.sink.sounds)

	f.run(2000, 2000)
	assert.Equal(t, []string{"up"}, f.sink.sounds)
	require.Len(t, events, 1)
	assert.Equal(t, "up", events[0].ClassName)

	last, ok := f.app.LastEvent()
	require.True(t, ok)
	assert.Equal(t, events[0].ID, last.ID)

	// Completed after 500ms, Neutral after 5s, driven by later ticks.
	f.predict(0.1, 0.1)
	f.run(2100, 7000)
	assert.Contains(t, f.sink.images, trigger.ImageCompleted)
	assert.Equal(t, trigger.ImageNeutral, f.sink.images[len(f.sink.images)-1])

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Gesture triggered", entry.Message)
}

func TestApp_PredictionErrorContinues(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()

	f.model.SetClassifyError(errors.New("bad tensor"))
	f.run(0, 0)
	assert.Equal(t, StatusPredictionError, f.sink.lastStatus())

	f.model.SetClassifyError(nil)
	f.predict(0.2, 0.1)
	f.run(100, 100)
	assert.Equal(t, trigger.StatusNoDetection, f.sink.lastStatus())

	var errorsLogged int
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errorsLogged++
		}
	}
	assert.Equal(t, 1, errorsLogged)
}

func TestApp_NobodyInFrame(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()

	f.predict(0.9, 0.1)
	f.run(0, 1000)
	status := f.sink.lastStatus()
	require.Contains(t, status, "Detected: up")
	images := len(f.sink.images)

	// Stepping out of frame leaves the display untouched.
	f.model.SetPose(nil)
	f.run(1100, 1100)
	assert.Equal(t, status, f.sink.lastStatus())
	assert.Len(t, f.sink.images, images)

	// Coming back starts a new hold at 1200, so nothing fires at 2000.
	f.model.SetPose(&pose.Pose{Score: 1, Output: []float32{0}})
	f.run(1200, 3100)
	assert.Empty(t, f.sink.sounds)

	f.run(3200, 3200)
	assert.Equal(t, []string{"up"}, f.sink.sounds)
}

func TestApp_PredictionErrorInterruptsHold(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()

	f.predict(0.9, 0.1)
	f.run(0, 1000)

	f.model.SetClassifyError(errors.New("bad tensor"))
	f.run(1100, 1100)
	f.model.SetClassifyError(nil)

	f.run(1200, 3100)
	assert.Empty(t, f.sink.sounds)

	f.run(3200, 3200)
	assert.Equal(t, []string{"up"}, f.sink.sounds)
}

func TestApp_ReadErrorsAreThrottled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()

	f.camera.SetReadError(errors.New("device busy"))
	f.run(0, 900)

	var warnings int
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
	assert.Zero(t, f.model.Calls())
}

func TestApp_Disabled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()

	f.app.SetEnabled(false)
	assert.False(t, f.app.IsEnabled())

	f.predict(0.9, 0.1)
	f.run(0, 3000)
	assert.Zero(t, f.model.Calls())
	assert.Empty(t, f.sink.sounds)
}

func TestApp_ReenableRestartsHold(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()

	f.predict(0.9, 0.1)
	f.run(0, 1500)

	f.app.SetEnabled(false)
	f.run(1600, 1700)
	f.app.SetEnabled(true)

	// The hold restarts at 1800, so nothing fires at 2000.
	f.run(1800, 3700)
	assert.Empty(t, f.sink.sounds)

	f.run(3800, 3800)
	assert.Equal(t, []string{"up"}, f.sink.sounds)
}

func TestApp_PauseInsideCooldownDoesNotRetrigger(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()

	f.predict(0.9, 0.1)
	f.run(0, 2000)
	require.Equal(t, []string{"up"}, f.sink.sounds)

	f.app.SetEnabled(false)
	f.run(2100, 2200)
	f.app.SetEnabled(true)

	// A full hold from 2300 completes at 4300, still within the cooldown.
	f.run(2300, 4900)
	assert.Equal(t, []string{"up"}, f.sink.sounds)

	// The display sequence of the first trigger still finishes.
	f.predict(0.1, 0.1)
	f.run(5000, 7000)
	assert.Contains(t, f.sink.images, trigger.ImageCompleted)
	assert.Equal(t, trigger.ImageNeutral, f.sink.images[len(f.sink.images)-1])
}

func TestApp_EnabledChangeListeners(t *testing.T) {
	f := newFixture(t)

	var got []bool
	f.app.OnEnabledChange(func(enabled bool) { got = append(got, enabled) })

	f.app.SetEnabled(false)
	f.app.SetEnabled(false)
	f.app.SetEnabled(true)
	f.app.SetEnabled(true)

	assert.Equal(t, []bool{false, true}, got, "only changes are reported")
}

func TestApp_DisplayUpdatesRunWhileDisabled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.open())
	defer f.app.close()

	f.predict(0.9, 0.1)
	f.run(0, 2000)
	require.Equal(t, []string{"up"}, f.sink.sounds)

	f.app.SetEnabled(false)
	f.run(2100, 2500)
	assert.Equal(t, trigger.ImageCompleted, f.sink.images[len(f.sink.images)-1])
}
