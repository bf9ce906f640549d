// Package process runs short-lived external tools under a deadline.
//
// FilaCore shells out to a TLS probe (openssl s_client by default) to read the
// certificate chain a printer presents. The probe never exits on its own while
// stdin is open, may spawn helpers, and exits non-zero after a perfectly good
// handshake, so this package:
//   - starts the tool in its own process group with empty stdin
//   - kills the whole group when the deadline passes
//   - captures stdout and stderr separately
//   - reports a non-zero exit code as data, not as an error
//
// Example usage:
//
//	res, err := process.Run(ctx, process.Config{
//	    Name:    "tls-probe",
//	    Binary:  "openssl",
//	    Args:    []string{"s_client", "-showcerts", "-connect", "10.0.0.5:8883"},
//	    Timeout: 15 * time.Second,
//	})
package process
