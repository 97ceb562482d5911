package httpmw

import (
	"html"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/request"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
)

// Sanitize strips markup from every string of the parsed body and the query
// string; plain text comes out as the client sent it. It must run after
// ParseBody. The cleaned body replaces the request body so binders downstream
// only ever see sanitized input.
func Sanitize() gin.HandlerFunc {
	policy := bluemonday.StrictPolicy()

	return func(c *gin.Context) {
		if body, ok := request.ParsedBody(c); ok {
			if err := request.ReplaceBody(c, sanitizeValue(policy, body)); err != nil {
				response.Error(c, apperror.Internal(err, "failed to encode sanitized body"))
				return
			}
		}

		if c.Request.URL.RawQuery != "" {
			q := c.Request.URL.Query()
			for k, vs := range q {
				for i, v := range vs {
					vs[i] = clean(policy, v)
				}
				q[k] = vs
			}
			c.Request.URL.RawQuery = q.Encode()
		}

		c.Next()
	}
}

// sanitizeValue returns a cleaned copy of v.
func sanitizeValue(p *bluemonday.Policy, v any) any {
	switch x := v.(type) {
	case string:
		return clean(p, x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[clean(p, k)] = sanitizeValue(p, val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = sanitizeValue(p, val)
		}
		return out
	default:
		return v
	}
}

// maxCleanPasses bounds the fixpoint loop in clean.
const maxCleanPasses = 4

// clean removes markup from s and decodes the entities the policy adds, so
// "Tom & Jerry" stays as typed. Decoding can turn entity-encoded text back
// into a tag, so the pass repeats until the output is stable.
func clean(p *bluemonday.Policy, s string) string {
	for range maxCleanPasses {
		out := html.UnescapeString(p.Sanitize(s))
		if out == s {
			return out
		}
		s = out
	}
	return s
}
