// Package auth provides optional token authentication for the FilaCore API.
//
// There are no user accounts. The operator issues HS256 JWTs from the
// command line (filacore token --role operator) and clients present them as
// bearer tokens. Each token carries one of three roles:
//
//	viewer   → read printers, filaments, history and state
//	operator → viewer + run printer commands, edit filaments
//	admin    → operator + register printers, manage certificates
//
// Role-permission mapping is static. When no secret is configured the API
// runs without authentication, which suits a trusted workshop LAN.
package auth
