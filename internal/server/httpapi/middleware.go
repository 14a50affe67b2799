package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/buffermesh/buffermesh/internal/common"
)

const clientUIDKey = "clientUID"

// requireClient resolves the bearer token through the token verifier and
// stores the subject client UID on the request context.
func (s *Server) requireClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AccessTokenHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		clientUID, err := s.verifier.VerifyAccessToken(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(clientUIDKey, clientUID)
		c.Next()
	}
}

func clientUID(c *gin.Context) string {
	return c.GetString(clientUIDKey)
}
