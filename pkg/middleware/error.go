package middleware

import (
	"errors"
	"net/http"

	"paz-rewards/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error as the uniform {error: ...} envelope.
// Anything that is not a BaseError is logged and reduced to a generic 500 so
// internals never leak to clients.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			if be.Err != nil {
				zap.L().Error("request failed",
					zap.String("path", c.FullPath()),
					zap.String("code", string(be.Code)),
					zap.Error(be.Err),
				)
			}
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		zap.L().Error("unhandled request error",
			zap.String("path", c.FullPath()),
			zap.Error(last.Err),
		)
		internal := errutil.Internal("internal error").(errutil.BaseError)
		c.JSON(http.StatusInternalServerError, internal.JSON())
	}
}
