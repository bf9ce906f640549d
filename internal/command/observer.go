package command

import (
	"context"
	"errors"
	"time"
)

// Execution describes one finished Execute call.
type Execution struct {
	Serial     string
	Command    string
	SequenceID string
	Started    time.Time
	Duration   time.Duration

	// Err is nil on success.
	Err error
}

// Outcome returns "ok" or a short failure code.
func (e Execution) Outcome() string {
	return Outcome(e.Err)
}

// Outcome classifies an execution error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectFailed):
		return "connect_failed"
	case errors.Is(err, ErrCertificateMissing):
		return "certificate_missing"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// Observer is told about every execution, successful or not. It is called
// synchronously on the executing goroutine and must not block for long.
type Observer interface {
	CommandExecuted(ctx context.Context, exec Execution)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, exec Execution)

// CommandExecuted calls f.
func (f ObserverFunc) CommandExecuted(ctx context.Context, exec Execution) {
	f(ctx, exec)
}
