// Package config loads runtime settings for Mudra from defaults, an optional
// .env file and MUDRA_* environment variables. Detection constants are not
// part of it; they are fixed in the trigger package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings.
type Config struct {
	// Addr is the HTTP listen address. The default only accepts local connections.
	Addr string
	// CameraID is the webcam device index.
	CameraID int
	// ModelDir contains model.onnx and metadata.json.
	ModelDir string
	// ORTLibrary is the path to the ONNX Runtime shared library.
	ORTLibrary string
	// PoseScript is the pose estimation service script. Empty means search the usual places.
	PoseScript string
	// AssetsDir contains sounds/ and images/.
	AssetsDir string
	// WebDir contains the dashboard page. Empty means search the usual places.
	WebDir string
	// Player is the audio command, e.g. "ffplay -nodisp -autoexit".
	Player string
	// Tray shows the system tray menu.
	Tray bool
	// LogLevel is a logrus level name.
	LogLevel string
	// LogFile receives a rotated copy of the log when set.
	LogFile string
}

// DataDir returns ~/.mudra, the default home of models and assets.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// Default returns the built-in settings.
func Default() Config {
	dataDir := DataDir()
	return Config{
		Addr:      "localhost:8080",
		CameraID:  0,
		ModelDir:  filepath.Join(dataDir, "my_model"),
		AssetsDir: dataDir,
		LogLevel:  "info",
	}
}

// Load returns the default settings overridden by the .env file at envFile
// (ignored when missing) and by MUDRA_* environment variables.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Addr, "MUDRA_ADDR")
	setString(&c.ModelDir, "MUDRA_MODEL_DIR")
	setString(&c.ORTLibrary, "MUDRA_ORT_LIBRARY")
	setString(&c.PoseScript, "MUDRA_POSE_SCRIPT")
	setString(&c.AssetsDir, "MUDRA_ASSETS_DIR")
	setString(&c.WebDir, "MUDRA_WEB_DIR")
	setString(&c.Player, "MUDRA_PLAYER")
	setString(&c.LogLevel, "MUDRA_LOG_LEVEL")
	setString(&c.LogFile, "MUDRA_LOG_FILE")

	if v, ok := os.LookupEnv("MUDRA_CAMERA_ID"); ok && v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MUDRA_CAMERA_ID: %w", err)
		}
		c.CameraID = id
	}
	if v, ok := os.LookupEnv("MUDRA_TRAY"); ok && v != "" {
		tray, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MUDRA_TRAY: %w", err)
		}
		c.Tray = tray
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
