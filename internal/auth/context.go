package auth

import "github.com/gin-gonic/gin"

const (
	userIDKey    = "userID"
	userEmailKey = "userEmail"
	userRoleKey  = "userRole"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Anonymous reports whether no user is authenticated.
func (i Identity) Anonymous() bool { return i.UserID == "" }

// GetIdentity returns the caller set by AuthRequired or OptionalAuth.
func GetIdentity(c *gin.Context) Identity {
	return Identity{
		UserID: GetUserID(c),
		Email:  GetUserEmail(c),
		Role:   GetUserRole(c),
	}
}

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetUserEmail returns the authenticated user's email or empty string.
func GetUserEmail(c *gin.Context) string {
	return c.GetString(userEmailKey)
}

// GetUserRole returns the authenticated user's role or empty string.
func GetUserRole(c *gin.Context) string {
	return c.GetString(userRoleKey)
}
