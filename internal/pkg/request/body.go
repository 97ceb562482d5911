package request

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
)

const parsedBodyKey = "request.parsedBody"

// SetParsedBody records the decoded request body for later stages.
func SetParsedBody(c *gin.Context, v any) {
	c.Set(parsedBodyKey, v)
}

// ParsedBody returns the body decoded by the body parsing stage, if any.
func ParsedBody(c *gin.Context) (any, bool) {
	return c.Get(parsedBodyKey)
}

// ReplaceBody re-encodes v as the JSON request body so that downstream
// binders read the rewritten value.
func ReplaceBody(c *gin.Context, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	c.Request.ContentLength = int64(len(raw))
	c.Request.Header.Set("Content-Type", gin.MIMEJSON)
	c.Request.Header.Set("Content-Length", strconv.Itoa(len(raw)))
	SetParsedBody(c, v)
	return nil
}

// readBody drains the body and puts an identical reader back.
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, nil
}
