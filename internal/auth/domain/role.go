package domain

import "fmt"

// Role is the closed set of storefront roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole rejects anything outside the known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string { return string(r) }

// Satisfies reports whether a holder of r may act where required is needed.
// Admins satisfy every requirement.
func (r Role) Satisfies(required Role) bool {
	return r == RoleAdmin || r == required
}
