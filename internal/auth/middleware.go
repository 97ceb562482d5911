package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
)

const (
	MsgNoToken      = "Not authorized, no token provided"
	MsgTokenExpired = "Token expired"
	MsgInvalidToken = "Not authorized, invalid token"
	MsgNoRole       = "No permission to access this resource"
)

// AuthRequired is a Gin middleware that validates JWT from Authorization: Bearer <token>
func AuthRequired(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			response.Error(c, apperror.Unauthorized(MsgNoToken))
			return
		}

		claims, err := jwtManager.ParseAndValidate(tokenStr)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				response.Error(c, apperror.Unauthorized(MsgTokenExpired))
				return
			}
			response.Error(c, apperror.Unauthorized(MsgInvalidToken))
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the identity when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearerToken(c); ok {
			if claims, err := jwtManager.ParseAndValidate(tokenStr); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// Authorize requires the authenticated user to hold one of roles.
// It MUST be used after AuthRequired.
func Authorize(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetUserRole(c)
		if role == "" {
			response.Error(c, apperror.Forbidden(MsgNoRole))
			return
		}
		if !slices.Contains(roles, role) {
			response.Error(c, apperror.Forbidden(fmt.Sprintf("Role %s is not authorized to access this resource", role)))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func setIdentity(c *gin.Context, claims *Claims) {
	// Store user info into Gin context for later handlers.
	c.Set(userIDKey, claims.UserID)
	c.Set(userEmailKey, claims.Email)
	c.Set(userRoleKey, claims.Role)
}
