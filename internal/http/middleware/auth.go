// README: Bearer-token auth middleware; attaches the verified identity to the request.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chauffeur/internal/infra"
)

const identityKey = "identity"

func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (infra.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return infra.Identity{}, false
	}
	id, ok := v.(infra.Identity)
	return id, ok
}
