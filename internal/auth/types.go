package auth

import "errors"

// Role is an authorisation tier.
type Role string

const (
	// RoleViewer can read everything but change nothing.
	RoleViewer Role = "viewer"

	// RoleOperator runs printer commands and maintains the spool catalogue.
	RoleOperator Role = "operator"

	// RoleAdmin also registers printers and manages certificates.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
)
