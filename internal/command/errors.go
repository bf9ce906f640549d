package command

import "errors"

// Failure kinds of a command execution. Use errors.Is to tell them apart.
var (
	// ErrCertificateMissing means no certificate bundle is stored for the printer.
	ErrCertificateMissing = errors.New("command: printer certificate missing")

	// ErrConnectFailed means the session could not be opened, subscribed or
	// published on.
	ErrConnectFailed = errors.New("command: printer connection failed")

	// ErrTimeout means no matching reply arrived before the deadline.
	ErrTimeout = errors.New("command: no reply before deadline")

	// ErrInvalidSlot means an AMS slot outside 1..4 was requested.
	ErrInvalidSlot = errors.New("command: slot must be between 1 and 4")

	// ErrFilamentNotFound means the requested fcid is not in the catalogue.
	ErrFilamentNotFound = errors.New("command: filament not found")

	// ErrBusy means another command for the same printer did not finish in
	// time. Only returned when per-printer serialisation is enabled.
	ErrBusy = errors.New("command: printer busy")
)
