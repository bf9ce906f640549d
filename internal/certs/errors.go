package certs

import "errors"

// Failure kinds reported by Fetch.
var (
	// ErrTimeout means the probe did not finish within its deadline.
	ErrTimeout = errors.New("certs: probe timed out")

	// ErrNoOutput means the probe exited without writing anything.
	ErrNoOutput = errors.New("certs: probe produced no output")

	// ErrNoCertificates means the probe output held no PEM certificate block.
	ErrNoCertificates = errors.New("certs: no certificates in probe output")

	// ErrProcess means the probe could not be spawned or failed unexpectedly.
	ErrProcess = errors.New("certs: probe process failed")
)

// ErrInvalidName is returned for printer names that cannot be used as a
// directory under the certificate root.
var ErrInvalidName = errors.New("certs: invalid printer name")

// ErrNoDirectory is returned by Store.Replace when the printer's directory
// no longer exists.
var ErrNoDirectory = errors.New("certs: certificate directory missing")
