package printer

import "errors"

// Domain errors for the printer package.
var (
	// ErrNotFound is returned when no printer has the given serial or name.
	ErrNotFound = errors.New("printer: not found")

	// ErrDuplicateSerial is returned when adding a serial that is already registered.
	ErrDuplicateSerial = errors.New("printer: serial already registered")

	// ErrDuplicateName is returned when adding a name that is already in use.
	ErrDuplicateName = errors.New("printer: name already in use")

	// ErrNoActivePrinter is returned when no printer is marked active.
	ErrNoActivePrinter = errors.New("printer: no active printer")

	// ErrInvalidPrinter is returned when a record fails validation.
	ErrInvalidPrinter = errors.New("printer: invalid")
)
