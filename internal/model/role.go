package model

import (
	"database/sql/driver"
	"fmt"
)

// Role is a closed set; the zero value is not a valid role.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleAdmin
	RoleBoe
)

func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	case "boe":
		return RoleBoe, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	case RoleBoe:
		return "boe"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleBoe:
		return true
	default:
		return false
	}
}

// CanViewAllDocuments reports whether the role sees every user's documents.
func (r Role) CanViewAllDocuments() bool {
	switch r {
	case RoleAdmin, RoleBoe:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

// CanDeleteAnyDocument reports whether the role may delete documents it does not own.
func (r Role) CanDeleteAnyDocument() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleBoe, RoleUser:
		return false
	default:
		return false
	}
}

func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return r.String(), nil
}

func (r *Role) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
	parsed, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
