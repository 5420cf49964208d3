package pose

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// DefaultIdleTimeout is how long the pose service may sit unused before it is stopped.
const DefaultIdleTimeout = 30 * time.Second

// EstimatorConfig configures the pose estimation subprocess.
type EstimatorConfig struct {
	// Command is the full command line of the pose service. When empty it is
	// built from a virtualenv Python (or python3) and the pose_service.py script.
	Command []string
	// ScriptPath overrides the pose_service.py search.
	ScriptPath string
	// IdleTimeout stops the subprocess after this much inactivity. Zero uses DefaultIdleTimeout.
	IdleTimeout time.Duration
}

// MediaPipeEstimator implements Estimator with a MediaPipe pose subprocess.
//
// Protocol: for each frame, a 4-byte big-endian length followed by the JPEG
// bytes is written to the service's stdin; it answers with one JSON line,
// {"pose": {...}} or {"pose": null} or {"error": "..."}.
type MediaPipeEstimator struct {
	command     []string
	idleTimeout time.Duration
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      *bufio.Reader
	mu          sync.Mutex
	started     bool
	lastUsed    time.Time
	idleTimer   *time.Timer
}

// NewMediaPipeEstimator creates a new estimator.
// The subprocess is started lazily on first estimation.
func NewMediaPipeEstimator(config EstimatorConfig) (*MediaPipeEstimator, error) {
	command := config.Command
	if len(command) == 0 {
		scriptPath := config.ScriptPath
		if scriptPath == "" {
			scriptPath = FindPoseScript()
		}
		if scriptPath == "" {
			return nil, fmt.Errorf("pose_service.py not found")
		}
		if _, err := os.Stat(scriptPath); err != nil {
			return nil, fmt.Errorf("pose service script: %w", err)
		}

		pythonPath := findVenvPython()
		if pythonPath == "" {
			pythonPath = "python3"
		}
		command = []string{pythonPath, scriptPath}
	}

	idle := config.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	return &MediaPipeEstimator{
		command:     command,
		idleTimeout: idle,
	}, nil
}

// EstimatePose encodes frame as JPEG and asks the service for a pose.
func (d *MediaPipeEstimator) EstimatePose(frame *gocv.Mat) (*Pose, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return d.estimate(buf.GetBytes())
}

// estimate sends one encoded frame to the service and decodes the answer.
func (d *MediaPipeEstimator) estimate(data []byte) (*Pose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.shutdown()
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Pose  *Pose  `json:"pose"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("pose service: %s", response.Error)
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return response.Pose, nil
}

// Close shuts down the subprocess.
func (d *MediaPipeEstimator) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeEstimator) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.command[0], d.command[1:]...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Service diagnostics go straight to our stderr.
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	return nil
}

func (d *MediaPipeEstimator) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeEstimator) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.idleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// Running reports whether the subprocess is currently up.
func (d *MediaPipeEstimator) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// FindPoseScript looks for scripts/pose_service.py next to the working
// directory, next to the executable and under ~/.mudra. It returns an empty
// string when none exists.
func FindPoseScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/pose_service.py",
		"../scripts/pose_service.py",
		"../../scripts/pose_service.py",
		filepath.Join(execDir, "scripts/pose_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mudra/scripts/pose_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
