package user

import (
	"errors"
	"time"

	"github.com/nekogravitycat/blog-backend/internal/auth"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailAlreadyUsed   = errors.New("email already used")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Roles.
const (
	RoleUser  = auth.RoleUser
	RoleAdmin = auth.RoleAdmin
)

// User represents a user in the system.
type User struct {
	ID           string // UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// IsAdmin reports whether u holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
