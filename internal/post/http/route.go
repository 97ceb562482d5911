package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/request"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, optionalAuth, adminMiddleware gin.HandlerFunc) {
	group := g.Group("/posts")

	byID := request.Validate[request.ByIDRequest](request.FromParams)

	// === Public Routes (drafts only for their author or admins) ===
	{
		group.GET("", optionalAuth, request.Validate[ListPostsRequest](request.FromQuery), h.List)
		group.GET("/:id", optionalAuth, byID, h.Get)
		group.GET("/:id/cover", optionalAuth, byID, h.GetCover)
	}

	// === Authenticated Routes ===
	{
		group.POST("", authMiddleware, request.Validate[CreatePostRequest](request.FromBody), h.Create)
		group.PUT("/:id", authMiddleware, byID, request.Validate[UpdatePostRequest](request.FromBody), h.Update)
		group.DELETE("/:id", authMiddleware, byID, h.Delete)
		group.PUT("/:id/cover", authMiddleware, byID, h.UploadCover)
	}

	// === Administration Routes ===
	group.POST("/generate", authMiddleware, adminMiddleware, h.Generate)
}
