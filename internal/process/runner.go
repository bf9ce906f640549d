package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Errors returned by Run.
var (
	// ErrTimeout means the deadline passed before the process exited.
	ErrTimeout = errors.New("process: timed out")

	// ErrStart means the binary could not be spawned.
	ErrStart = errors.New("process: failed to start")
)

// waitDelay bounds how long Wait keeps draining pipes after the group is killed.
const waitDelay = 2 * time.Second

// Config describes one invocation.
type Config struct {
	// Name identifies the process in logs.
	Name string

	// Binary is the executable path or a name resolved via PATH.
	Binary string

	// Args are the command-line arguments.
	Args []string

	// Env adds variables on top of the current environment.
	Env []string

	// Timeout bounds the whole run. Zero means only ctx applies.
	Timeout time.Duration
}

// Result is what a finished process left behind.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Logger is the logging surface used by the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Runner executes processes. The zero value is ready to use.
type Runner struct {
	logger Logger
}

// NewRunner returns a Runner that logs through logger (nil means silent).
func NewRunner(logger Logger) *Runner {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Runner{logger: logger}
}

// Run executes cfg with the package default runner.
func Run(ctx context.Context, cfg Config) (Result, error) {
	return (&Runner{}).Run(ctx, cfg)
}

// Run starts the process, waits for it to exit or for the deadline, and
// returns its output. When the deadline passes the whole process group gets
// SIGKILL and ErrTimeout is returned together with whatever output was
// captured so far.
func (r *Runner) Run(ctx context.Context, cfg Config) (Result, error) {
	logger := r.logger
	if logger == nil {
		logger = noopLogger{}
	}

	if strings.TrimSpace(cfg.Binary) == "" {
		return Result{}, fmt.Errorf("%w: empty binary", ErrStart)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cfg.Binary, cfg.Args...) //nolint:gosec // binary comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID signals the process group created via Setpgid.
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return err
		}
		return nil
	}
	cmd.WaitDelay = waitDelay
	if cfg.Env != nil {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(nil)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("starting process", "name", cfg.Name, "binary", cfg.Binary, "args", cfg.Args)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrStart, cfg.Name, err)
	}

	waitErr := cmd.Wait()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn("process killed", "name", cfg.Name, "after", res.Duration, "reason", ctxErr)
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%w: %s after %s", ErrTimeout, cfg.Name, res.Duration.Round(time.Millisecond))
		}
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, fmt.Errorf("waiting for %s: %w", cfg.Name, waitErr)
	}

	logger.Debug("process exited", "name", cfg.Name, "exit_code", res.ExitCode, "duration", res.Duration)
	return res, nil
}
