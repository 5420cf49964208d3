package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/display"
	"github.com/ayusman/mudra/internal/feedback"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/trigger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type recordingPlayer struct {
	mu     sync.Mutex
	played []string
}

func (p *recordingPlayer) Play(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, filepath.Base(path))
	return nil
}

func (p *recordingPlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.played...)
}

// steppingClock advances 100ms on every reading, so each detection tick
// covers a tenth of a second regardless of how fast the loop runs.
func steppingClock() func() time.Time {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(100 * time.Millisecond)
		return now
	}
}

func writeAssets(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for _, f := range []string{"sounds/up.mp3", "images/up.png", "images/Completed.png", "images/Neutral.png"} {
		path := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0o644))
	}
	return dir
}

func TestE2E_HeldPoseTriggersFeedback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	assetsDir := writeAssets(t)
	assets := feedback.NewAssets(assetsDir)
	require.NoError(t, assets.Discover())

	hub := display.NewHub(nil)
	player := &recordingPlayer{}
	controller := feedback.NewController(assets, player, hub, nil)

	frame := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()
	camera := capture.NewMockCamera([]*gocv.Mat{&frame}, true)

	model := pose.NewMock("up", "toleft")
	model.SetPredictions([]trigger.Prediction{
		{ClassName: "up", Probability: 0.95},
		{ClassName: "toleft", Probability: 0.05},
	})

	frames := capture.NewFrameBuffer()
	session := app.New(app.Config{
		Camera:   camera,
		Load:     func() (*pose.Model, error) { return model.Model(), nil },
		Sink:     controller,
		Frames:   frames,
		Interval: time.Millisecond,
		Now:      steppingClock(),
	})

	var mu sync.Mutex
	var events []trigger.Event
	session.OnTrigger(func(ev trigger.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	ts := httptest.NewServer(server.New(server.Config{
		AssetsDir: assetsDir,
		Assets:    assets,
		Frames:    frames,
		Display:   hub,
		Detector:  session,
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	t.Run("TriggerPlaysSound", func(t *testing.T) {
		require.Eventually(t, func() bool {
			return len(player.Played()) > 0
		}, 5*time.Second, 5*time.Millisecond)
		assert.Equal(t, "up.mp3", player.Played()[0])
	})

	t.Run("DisplayFollowsTrigger", func(t *testing.T) {
		require.Eventually(t, func() bool {
			s := hub.Snapshot()
			return s.Image != nil && s.Image.Name != trigger.ImageNeutral
		}, 5*time.Second, 5*time.Millisecond)
		assert.Equal(t, "Detected: up (95.00%)", hub.Snapshot().Status)
	})

	t.Run("StatusAPI", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body struct {
			Status    string         `json:"status"`
			Enabled   bool           `json:"enabled"`
			Running   bool           `json:"running"`
			LastEvent *trigger.Event `json:"lastEvent"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Enabled)
		assert.True(t, body.Running)
		require.NotNil(t, body.LastEvent)
		assert.Equal(t, "up", body.LastEvent.ClassName)
	})

	t.Run("AssetServed", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/assets/images/up.png")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("PauseDetection", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/detection", strings.NewReader(`{"enabled": false}`))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, session.IsEnabled())
	})

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, "up", ev.ClassName)
		assert.NotEmpty(t, ev.ID)
	}
}

func TestE2E_MissingModelReportsStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	hub := display.NewHub(nil)
	frame := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()

	session := app.New(app.Config{
		Camera: capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		Load: func() (*pose.Model, error) {
			return pose.Load(pose.LoadConfig{Dir: t.TempDir()})
		},
		Sink: feedback.NewController(nil, nil, hub, nil),
	})

	err := session.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, app.StatusModelFailed, hub.Snapshot().Status)
	assert.False(t, session.Running())
}
