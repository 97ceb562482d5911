package httpmw

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
)

// NotFoundMessage is the message of the fallback for unmatched routes.
const NotFoundMessage = "Resource not found"

// NotFound forwards a 404 for unmatched routes so it renders like any other error.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Error(c, apperror.NotFound(NotFoundMessage))
	}
}
