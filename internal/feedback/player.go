package feedback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/log"
)

// DefaultPlayTimeout bounds a single playback.
const DefaultPlayTimeout = 10 * time.Second

// ErrNoPlayer is returned when no audio command is configured.
var ErrNoPlayer = errors.New("no audio player configured")

// Player plays sound files.
type Player interface {
	// Play starts playing the file at path and returns without waiting for it to finish.
	Play(path string) error
}

// DefaultCommand returns the audio command for the current platform.
func DefaultCommand() []string {
	if runtime.GOOS == "darwin" {
		return []string{"afplay"}
	}
	return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}
}

// ParseCommand splits a command line such as "ffplay -nodisp -autoexit".
// An empty line selects DefaultCommand.
func ParseCommand(line string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return DefaultCommand()
	}
	return fields
}

// CommandPlayer plays sounds by running an external command with the file
// path appended as the last argument.
type CommandPlayer struct {
	command []string
	timeout time.Duration
	logger  logrus.FieldLogger
	wg      sync.WaitGroup
}

// NewCommandPlayer creates a CommandPlayer. A zero timeout uses
// DefaultPlayTimeout and a nil logger discards output.
func NewCommandPlayer(command []string, timeout time.Duration, logger logrus.FieldLogger) *CommandPlayer {
	if timeout <= 0 {
		timeout = DefaultPlayTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &CommandPlayer{
		command: command,
		timeout: timeout,
		logger:  logger,
	}
}

// Play runs the command in the background. Playback failures are logged.
func (p *CommandPlayer) Play(path string) error {
	if len(p.command) == 0 {
		return ErrNoPlayer
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Run(path); err != nil {
			p.logger.WithError(err).WithField("file", path).Warn("Sound playback failed")
		}
	}()
	return nil
}

// Run plays path and waits for the command to finish or time out.
func (p *CommandPlayer) Run(path string) error {
	if len(p.command) == 0 {
		return ErrNoPlayer
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	args := append(append([]string{}, p.command[1:]...), path)
	cmd := exec.CommandContext(ctx, p.command[0], args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("playback timeout after %s", p.timeout)
	}

	if err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return fmt.Errorf("playback failed: %w, stderr: %s", err, s)
		}
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

// Wait blocks until every playback started by Play has finished.
func (p *CommandPlayer) Wait() {
	p.wg.Wait()
}
