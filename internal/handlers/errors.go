package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lineup-chat/internal/apperr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// respondError writes err as {"error":{"code","message"}} with the status of its kind.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), errorResponse{Error: errorBody{Code: string(kind), Message: apperr.MessageOf(err)}})
}

func respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: errorBody{Code: string(apperr.KindValidation), Message: message}})
}
