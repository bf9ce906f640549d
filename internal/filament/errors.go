package filament

import "errors"

// Domain errors for the filament package.
var (
	// ErrNotFound is returned when no filament has the given fcid.
	ErrNotFound = errors.New("filament: not found")

	// ErrInvalidFilament is returned when a record fails validation.
	ErrInvalidFilament = errors.New("filament: invalid")

	// ErrProfilesNotFound is returned when the print profile catalogue is missing.
	ErrProfilesNotFound = errors.New("filament: print profiles not found")
)
