package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buffermesh/buffermesh/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

// abortWithError maps a service error onto a stable HTTP status. All
// authentication failures collapse into one 401 body so the response does
// not reveal why a credential was rejected.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenNotFound):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, common.ErrorForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, common.ErrorNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrorAlreadyExists):
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: "already exists"})
	case errors.Is(err, common.ErrAccessTokenExists):
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: "active access token exists"})
	case errors.Is(err, common.ErrorIncorrectTransitions),
		errors.Is(err, common.ErrorInvalidContentType):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrCallTimeout), errors.Is(err, common.ErrTransport):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func abortBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
