package domain

import "time"

// Role enumerates the fixed set of account roles.
type Role string

const (
	RoleStudent  Role = "student"
	RoleFaculty  Role = "faculty"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
	RoleSecurity Role = "security"
)

// ParseRole returns the role matching value, reporting false for unknown roles.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleStudent, RoleFaculty, RoleStaff, RoleAdmin, RoleSecurity:
		return Role(value), true
	default:
		return "", false
	}
}

// IsElevated reports whether the role grants administrative reach.
func (r Role) IsElevated() bool {
	return r == RoleAdmin || r == RoleSecurity
}

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   *string
	StudentID    *string
	EmployeeID   *string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Sanitized returns a copy of the account without credential material.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	return a
}
