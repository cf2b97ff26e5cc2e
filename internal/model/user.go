// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the fixed kind of account a user signed up as. It never changes after
// the account is created.
type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleMentor || r == RoleMentee
}

// User represents a registered account.
//
// WHY POINTERS FOR Experience AND HourlyRate?
// Both are optional and only meaningful for mentors. A nil pointer means
// "not set", which is different from an explicit 0 years / 0 per hour.
//
// PasswordHash carries the `json:"-"` tag so that a User accidentally passed to
// writeJSON can never leak the bcrypt hash.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Email        string    `json:"email"        db:"email"`
	PasswordHash string    `json:"-"            db:"password_hash"`
	Name         string    `json:"name"         db:"name"`
	Role         Role      `json:"role"         db:"role"`
	Bio          string    `json:"bio"          db:"bio"`
	Skills       []string  `json:"skills"       db:"skills"` // stored as a JSON array
	Experience   *int      `json:"experience"   db:"experience"`
	HourlyRate   *float64  `json:"hourlyRate"   db:"hourly_rate"`
	ProfileImage string    `json:"-"            db:"profile_image"` // file name inside the upload dir, "" if none
	IsActive     bool      `json:"isActive"     db:"is_active"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
}

// IsMentor is a convenience for the many places that gate on the role.
func (u *User) IsMentor() bool {
	return u.Role == RoleMentor
}

// Caller is the identity of whoever is making the current request. It is
// resolved once per request from the bearer token and then passed explicitly
// into every service call, so no service ever reads identity from ambient state.
type Caller struct {
	UserID string
	Role   Role
	Name   string
	Email  string
}
