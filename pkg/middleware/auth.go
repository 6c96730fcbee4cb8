package middleware

import (
	"strings"

	"paz-rewards/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// AdminIdentityKey is the gin context key under which the resolved operator
// identity is stored.
const AdminIdentityKey = "admin_identity"

// AdminAuth requires a bearer token mapped to an allow-listed operator
// identity. Tokens come from configuration, validated at process start.
func AdminAuth(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, errutil.Unauthorized("missing bearer token"))
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, errutil.Unauthorized("malformed authorization header"))
			return
		}

		identity, ok := tokens[strings.TrimSpace(token)]
		if !ok {
			abort(c, errutil.Forbidden("access denied"))
			return
		}

		c.Set(AdminIdentityKey, identity)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	be := err.(errutil.BaseError)
	c.AbortWithStatusJSON(be.Code.HTTPStatus(), be.JSON())
}
