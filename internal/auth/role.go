package auth

import (
	"fmt"
	"strings"
)

// Role tags an authenticated caller.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleFaculty Role = "FACULTY"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole accepts role names in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity is the verified caller attached to a request.
type Identity struct {
	Subject string
	Role    Role
}

// Is reports whether the caller holds one of roles.
func (i Identity) Is(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
