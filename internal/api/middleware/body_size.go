package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodySizeLimit caps the request body at limit. Reading past it fails with
// *http.MaxBytesError, which BodyError turns into a 413. Declared lengths are not
// rejected up front so upload handlers can still see the part headers.
func BodySizeLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
