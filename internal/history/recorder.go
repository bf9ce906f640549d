package history

import (
	"context"

	"github.com/canny86/FilaCore/internal/command"
)

// Logger is the logging surface of the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder writes one entry per command execution.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger used for failed inserts.
func (r *Recorder) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// CommandExecuted implements command.Observer.
func (r *Recorder) CommandExecuted(ctx context.Context, exec command.Execution) {
	e := &Entry{
		Serial:     exec.Serial,
		Command:    exec.Command,
		SequenceID: exec.SequenceID,
		Outcome:    exec.Outcome(),
		DurationMS: exec.Duration.Milliseconds(),
		CreatedAt:  exec.Started,
	}
	if exec.Err != nil {
		e.Error = exec.Err.Error()
	}

	if err := r.repo.Create(ctx, e); err != nil {
		r.logger.Warn("recording command history", "serial", exec.Serial, "command", exec.Command, "error", err)
	}
}
