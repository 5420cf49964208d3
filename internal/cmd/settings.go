package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
)

// settingsFlags override values from the .env file and MUDRA_* variables.
var settingsFlags struct {
	addr       string
	camera     int
	modelDir   string
	ortLibrary string
	poseScript string
	assetsDir  string
	webDir     string
	player     string
	logLevel   string
	logFile    string
	tray       bool
}

func addSettingsFlags(c *cobra.Command) {
	f := c.PersistentFlags()
	f.StringVar(&settingsFlags.addr, "addr", "", "HTTP listen address (default \"localhost:8080\")")
	f.IntVar(&settingsFlags.camera, "camera", 0, "Webcam device index")
	f.StringVar(&settingsFlags.modelDir, "model-dir", "", "Directory with model.onnx and metadata.json (default ~/.mudra/my_model)")
	f.StringVar(&settingsFlags.ortLibrary, "ort-library", "", "Path to the ONNX Runtime shared library")
	f.StringVar(&settingsFlags.poseScript, "pose-script", "", "Path to pose_service.py")
	f.StringVar(&settingsFlags.assetsDir, "assets-dir", "", "Directory with sounds/ and images/ (default ~/.mudra)")
	f.StringVar(&settingsFlags.webDir, "web-dir", "", "Directory with the dashboard page")
	f.StringVar(&settingsFlags.player, "player", "", "Audio command, e.g. \"ffplay -nodisp -autoexit\"")
	f.StringVar(&settingsFlags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&settingsFlags.logFile, "log-file", "", "Also write logs to this file, rotated")
	f.BoolVar(&settingsFlags.tray, "tray", false, "Show the system tray menu")
}

// loadSettings reads the configuration and applies the flags set on c.
func loadSettings(c *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return cfg, err
	}

	f := c.Flags()
	if f.Changed("addr") {
		cfg.Addr = settingsFlags.addr
	}
	if f.Changed("camera") {
		cfg.CameraID = settingsFlags.camera
	}
	if f.Changed("model-dir") {
		cfg.ModelDir = settingsFlags.modelDir
	}
	if f.Changed("ort-library") {
		cfg.ORTLibrary = settingsFlags.ortLibrary
	}
	if f.Changed("pose-script") {
		cfg.PoseScript = settingsFlags.poseScript
	}
	if f.Changed("assets-dir") {
		cfg.AssetsDir = settingsFlags.assetsDir
	}
	if f.Changed("web-dir") {
		cfg.WebDir = settingsFlags.webDir
	}
	if f.Changed("player") {
		cfg.Player = settingsFlags.player
	}
	if f.Changed("log-level") {
		cfg.LogLevel = settingsFlags.logLevel
	}
	if f.Changed("log-file") {
		cfg.LogFile = settingsFlags.logFile
	}
	if f.Changed("tray") {
		cfg.Tray = settingsFlags.tray
	}
	return cfg, nil
}
