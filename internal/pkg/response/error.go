package response

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
	"github.com/nekogravitycat/blog-backend/internal/pkg/request"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Error forwards err to the error handler and stops the chain.
// Handlers and middleware never write error bodies themselves.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler is the terminal error stage. It must be registered before every
// stage that can forward an error: once the rest of the chain has returned, the
// last forwarded error is normalized, logged and written as an ErrorBody.
//
// In development the message of unexpected 5xx errors and their stack are shown
// to the client; everywhere else they are replaced by a generic message.
func ErrorHandler(development bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := apperror.Normalize(c.Errors.Last().Err)
		log := logger.FromContext(c.Request.Context())
		logError(c, log, appErr)

		if c.Writer.Written() {
			// a response already went out; never send a second one
			log.Warn("error raised after response was written", "status", c.Writer.Status())
			return
		}

		c.AbortWithStatusJSON(appErr.StatusCode, Body(appErr, development))
	}
}

// Body computes the client-visible body for err.
func Body(err *apperror.AppError, development bool) ErrorBody {
	body := ErrorBody{Status: "error", Message: err.Message}

	if err.StatusCode >= http.StatusInternalServerError && !err.Operational && !development {
		body.Message = apperror.DefaultMessage
	}
	if development && !err.Operational {
		body.Stack = err.Stack
	}
	return body
}

func logError(c *gin.Context, log *slog.Logger, err *apperror.AppError) {
	attrs := []any{
		"status", err.StatusCode,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"operational", err.Operational,
	}
	if err.Err != nil {
		attrs = append(attrs, "error", err.Err)
	}

	if err.StatusCode < http.StatusInternalServerError {
		log.Warn(err.Message, attrs...)
		return
	}

	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		params[p.Key] = p.Value
	}
	attrs = append(attrs,
		"params", params,
		"query", c.Request.URL.Query(),
		"stack", err.Stack,
	)
	if body, ok := request.ParsedBody(c); ok {
		attrs = append(attrs, "body", body)
	}
	log.Error(err.Message, attrs...)
}
