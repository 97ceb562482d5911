package httpmw

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/request"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
)

// ParseBody decodes JSON and urlencoded request bodies once, bounded by
// maxBytes, and records the result with request.SetParsedBody. Urlencoded
// bodies are rewritten as JSON so every later stage sees a single format.
// Multipart bodies are left to their handlers, which set their own limits.
func ParseBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		ct := c.ContentType()
		if ct != gin.MIMEJSON && ct != gin.MIMEPOSTForm {
			c.Next()
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(c, apperror.PayloadTooLarge("Request body too large"))
				return
			}
			response.Error(c, apperror.BadRequest("Unable to read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		if len(bytes.TrimSpace(raw)) == 0 {
			c.Next()
			return
		}

		switch ct {
		case gin.MIMEJSON:
			var v any
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&v); err != nil {
				response.Error(c, apperror.BadRequest("Malformed JSON body"))
				return
			}
			// Exactly one value; anything after it is malformed.
			if _, err := dec.Token(); !errors.Is(err, io.EOF) {
				response.Error(c, apperror.BadRequest("Malformed JSON body"))
				return
			}
			request.SetParsedBody(c, v)

		case gin.MIMEPOSTForm:
			values, err := url.ParseQuery(string(raw))
			if err != nil {
				response.Error(c, apperror.BadRequest("Malformed form body"))
				return
			}
			if err := request.ReplaceBody(c, formToMap(values)); err != nil {
				response.Error(c, apperror.Internal(err, "failed to encode form body"))
				return
			}
		}

		c.Next()
	}
}

func formToMap(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		out[k] = list
	}
	return out
}
