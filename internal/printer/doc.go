// Package printer keeps the registry of known printers.
//
// A printer is identified by its serial and reached through the MQTT broker
// it embeds, authenticated with its access code. At most one printer is
// active at any time; commands from the API always target the active one.
//
// The registry holds the collection in memory behind a mutex and writes the
// whole collection through to its Store on every change. Memory is only
// replaced after the write succeeded, so a failed save changes nothing and
// no reader ever sees two active printers.
package printer
