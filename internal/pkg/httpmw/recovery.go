package httpmw

import (
	"errors"
	"net/http"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
)

// Recovery turns handler panics into forwarded non-operational 500s.
// A client that went away mid-request is not a server fault: it is logged at
// debug level and the request is dropped.
func Recovery(onPanic func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			if clientAborted(r) {
				logger.FromContext(c.Request.Context()).Debug("client aborted request", "reason", r)
				c.Abort()
				return
			}

			if onPanic != nil {
				onPanic()
			}
			_ = c.Error(apperror.FromPanic(r))
			c.Abort()
		}()

		c.Next()
	}
}

func clientAborted(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	if errors.Is(err, http.ErrAbortHandler) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
