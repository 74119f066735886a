package identity

import (
	"errors"
	"time"
)

var (
	// ErrUserExists is returned when the email or phone is already registered.
	ErrUserExists = errors.New("user exists")
	// ErrUserNotFound is returned when no user matches the id.
	ErrUserNotFound = errors.New("user not found")
)

// User represents a registered account holder.
type User struct {
	ID        string
	FullName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Registration carries the details captured at sign-up.
type Registration struct {
	FullName string
	Email    string
	Phone    string
}
