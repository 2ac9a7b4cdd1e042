package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kenko/clinic-api/pkg/errors"
	"github.com/kenko/clinic-api/pkg/httputil"
)

// DefaultMaxBodySize caps JSON request bodies.
const DefaultMaxBodySize int64 = 1 << 20

// SizeLimit rejects oversized bodies up front and caps the rest while they
// are read.
func SizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			httputil.RespondWithError(c, errors.NewBadRequest("request body too large", nil))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
