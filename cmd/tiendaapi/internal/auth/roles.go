package auth

import (
	"fmt"
	"strings"
)

// Role is a principal's coarse-grained permission tag.
// The set is closed; use ParseRole to convert untrusted input.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// DefaultRole is assigned to principals created without explicit roles.
const DefaultRole = RoleUser

// AuthorityPrefix marks a role when serialized into token claims and casbin
// subjects. It never appears in stored role sets.
const AuthorityPrefix = "ROLE_"

// AllRoles lists every known role in a stable order.
func AllRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// Authority returns the wire form of the role, e.g. ROLE_ADMIN.
func (r Role) Authority() string {
	return AuthorityPrefix + string(r)
}

// ParseRole converts a role name (case-insensitive, with or without the
// ROLE_ prefix) into a Role.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, AuthorityPrefix)
	r := Role(name)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// ParseRoles converts a list of names and removes duplicates, keeping order.
func ParseRoles(names []string) ([]Role, error) {
	seen := make(map[Role]struct{}, len(names))
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	return roles, nil
}

// Authorities maps roles to their wire form.
func Authorities(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.Authority()
	}
	return out
}
