package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kenko/clinic-api/pkg/errors"
	"github.com/kenko/clinic-api/pkg/httputil"
)

// Recovery turns a panic into a 500 envelope and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				zerolog.Ctx(c.Request.Context()).Error().
					Interface("error", rec).
					Str("stack", string(debug.Stack())).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("Request panic recovered")

				httputil.RespondWithError(c, errors.NewInternal(fmt.Errorf("panic: %v", rec)))
			}
		}()
		c.Next()
	}
}
