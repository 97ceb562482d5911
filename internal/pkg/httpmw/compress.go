package httpmw

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

var compressibleTypes = []string{
	"application/json",
	"application/problem+json",
	"application/yaml",
	"application/javascript",
	"application/xml",
	"text/",
}

// Compress gzips responses for clients that accept it.
//
// The decision is taken on the first body write, not up front: a request that
// fails before writing leaves the writer untouched, so the error body written
// afterwards by the error handler goes out plain and whole.
func Compress(level int) gin.HandlerFunc {
	pool := sync.Pool{
		New: func() any {
			gz, err := gzip.NewWriterLevel(nil, level)
			if err != nil {
				gz, _ = gzip.NewWriterLevel(nil, gzip.DefaultCompression)
			}
			return gz
		},
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead ||
			!strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		orig := c.Writer
		gw := &gzipWriter{ResponseWriter: orig, pool: &pool}
		c.Writer = gw

		defer func() {
			gw.close()
			c.Writer = orig
		}()

		c.Next()
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	pool    *sync.Pool
	gz      *gzip.Writer
	decided bool
}

func (w *gzipWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true

	h := w.Header()
	status := w.Status()
	if h.Get("Content-Encoding") != "" ||
		status == http.StatusNoContent || status == http.StatusNotModified ||
		!compressible(h.Get("Content-Type")) {
		return
	}

	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")

	w.gz = w.pool.Get().(*gzip.Writer)
	w.gz.Reset(w.ResponseWriter)
}

func (w *gzipWriter) Write(b []byte) (int, error) {
	w.decide()
	if w.gz == nil {
		return w.ResponseWriter.Write(b)
	}
	if !w.Written() {
		w.WriteHeaderNow()
	}
	return w.gz.Write(b)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *gzipWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.ResponseWriter.Hijack()
}

func (w *gzipWriter) close() {
	if w.gz == nil {
		return
	}
	_ = w.gz.Close()
	w.gz.Reset(io.Discard)
	w.pool.Put(w.gz)
	w.gz = nil
}

func compressible(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}
