package api

import (
	_ "embed"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
)

//go:embed openapi.yaml
var openAPIYAML []byte

var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	return yaml.YAMLToJSON(openAPIYAML)
})

// DocsYAML serves the OpenAPI document as written.
func DocsYAML(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", openAPIYAML)
}

// DocsJSON serves the OpenAPI document converted to JSON.
func DocsJSON(c *gin.Context) {
	doc, err := openAPIJSON()
	if err != nil {
		response.Error(c, apperror.Internal(err, "failed to render API docs"))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}
