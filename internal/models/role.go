package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RolePM       Role = "PM"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalizes a role name, defaulting an empty value to EMPLOYEE.
func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case "":
		return RoleEmployee, nil
	case RoleEmployee, RolePM, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RolePM, RoleAdmin:
		return true
	}
	return false
}
