package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/display"
	"github.com/ayusman/mudra/internal/feedback"
	"github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tray"
	"github.com/ayusman/mudra/internal/trigger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start detection and the dashboard",
	RunE:  runMudra,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runMudra(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger, err := log.New(log.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}

	assets := feedback.NewAssets(cfg.AssetsDir)
	if err := assets.Discover(); err != nil {
		logger.WithError(err).Warn("Could not scan assets")
	}
	logger.WithFields(log.Fields{
		"dir":    assets.Dir(),
		"sounds": len(assets.Sounds()),
		"images": len(assets.Images()),
	}).Info("Assets discovered")

	hub := display.NewHub(logger)
	surfaces := []display.Surface{hub}

	var tr *tray.Tray
	if cfg.Tray {
		tr = tray.New()
		surfaces = append(surfaces, tr)
	}

	player := feedback.NewCommandPlayer(feedback.ParseCommand(cfg.Player), 0, logger)
	controller := feedback.NewController(assets, player, display.NewMulti(surfaces...), logger)
	frames := capture.NewFrameBuffer()

	session := app.New(app.Config{
		Camera: capture.NewCamera(cfg.CameraID),
		Load:   modelLoader(cfg),
		Sink:   controller,
		Frames: frames,
		Logger: logger,
	})

	if tr != nil {
		dashboard := dashboardURL(cfg.Addr)
		wireTray(tr, session, func() {
			if err := openBrowser(dashboard); err != nil {
				logger.WithError(err).Warn("Could not open browser")
			}
		})
	}

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		logger.WithField("dir", webDir).Info("Serving dashboard")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		AssetsDir: cfg.AssetsDir,
		Assets:    assets,
		Frames:    frames,
		Display:   hub,
		Detector:  session,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run(ctx, cfg.Addr)
	}()

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		// A failed session leaves its status on the dashboard until shutdown.
		if err := session.Run(ctx); err != nil {
			logger.WithError(err).Error("Detection session ended")
		}
	}()

	if tr != nil {
		tr.OnQuit(stop)
		go func() {
			<-ctx.Done()
			tr.Quit()
		}()
		// The tray owns the main goroutine until it quits.
		tr.Run()
		stop()
	}

	err = waitServer(ctx, serverErr)
	stop()
	<-sessionDone
	player.Wait()
	pose.ShutdownRuntime()
	return err
}

// wireTray connects the tray menu to the session in both directions, so a
// pause from the dashboard shows up in the menu too.
func wireTray(tr *tray.Tray, session *app.App, openDashboard func()) {
	session.OnTrigger(func(ev trigger.Event) { tr.SetLastGesture(ev.ClassName) })
	session.OnEnabledChange(tr.SetEnabled)
	tr.SetEnabled(session.IsEnabled())
	tr.OnToggle(session.SetEnabled)
	tr.OnDashboard(openDashboard)
}

func waitServer(ctx context.Context, serverErr <-chan error) error {
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		if err := <-serverErr; err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

func modelLoader(cfg config.Config) app.Loader {
	return func() (*pose.Model, error) {
		return pose.Load(pose.LoadConfig{
			Dir:        cfg.ModelDir,
			ORTLibrary: cfg.ORTLibrary,
			Estimator:  pose.EstimatorConfig{ScriptPath: cfg.PoseScript},
		})
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(config.DataDir(), "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("http://%s:%s/", host, port)
}

func openBrowser(url string) error {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "linux", "freebsd", "openbsd":
		name = "xdg-open"
	default:
		return errors.New("opening a browser is not supported on " + runtime.GOOS)
	}
	return exec.Command(name, url).Start()
}
