// Package api implements the HTTP REST API and report stream of FilaCore.
//
// This package provides:
//   - REST endpoints for printers, certificates, filaments and command history
//   - Command endpoints that query state and load filament on the active printer
//   - A WebSocket stream relaying live device reports of the active printer
//   - Optional JWT authentication with ticket-based WebSocket auth
//   - Middleware: request IDs, access logging with panic recovery, CORS and a body size cap
//
// # Errors
//
// Every failure is answered with {"error": ..., "code": ...}. Codes are
// stable; messages are not. Printer command failures map to 412 (certificate
// missing), 502 (connection failed), 504 (no reply) and 409 (printer busy).
//
// # Security
//
// Authentication is off when no JWT secret is configured, which suits a
// trusted workshop LAN. With a secret set, every route except health, metrics
// and the banner requires a bearer token carrying a viewer, operator or
// admin role.
package api
