// Package command turns printer MQTT exchanges into synchronous calls.
//
// A printer only talks MQTT: commands go to device/{serial}/request and
// answers arrive, mixed in with a steady stream of state reports, on
// device/{serial}/report. Bridge.Execute hides that behind one blocking call:
//
//  1. open a TLS session to the printer
//  2. subscribe to the report topic and wait for the SUBACK
//  3. publish the command
//  4. wait for the first report the command's Match accepts, or the deadline
//  5. close the session, always
//
// Correlation is single-shot. The first matching report is handed to the
// waiter through a one-slot channel; later reports are dropped. Reports that
// are not valid JSON objects are logged and never match.
//
// Service adds the registry side: it resolves the active printer, checks the
// stored certificate and looks up filaments before anything touches the
// network.
package command
