package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/request"
)

// RegisterRoutes mounts the authentication endpoints under rg.
func RegisterRoutes(rg *gin.RouterGroup, h *UserHandler, authMiddleware gin.HandlerFunc) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", request.Validate[RegisterRequest](request.FromBody), h.Register)
		authGroup.POST("/login", request.Validate[LoginRequest](request.FromBody), h.Login)
		authGroup.GET("/me", authMiddleware, h.Me)
	}
}
