// Package history records every printer command execution in SQLite.
//
// Rows live in the command_log table created by the embedded migrations.
// Recorder plugs into the command bridge as an observer, so history is
// written whether a command succeeds or not. A failed insert is logged and
// never fails the command itself.
package history
