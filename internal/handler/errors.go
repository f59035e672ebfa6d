package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dealbroker/internal/services"
	"dealbroker/internal/transport/httpdto"
)

func writeError(c *gin.Context, err error) {
	c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), services.ErrorCode(err)))
}

func writeInvalid(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

// parseID reads a uuid from s, answering 400 when it is malformed.
func parseID(c *gin.Context, s, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeInvalid(c, "invalid "+field)
		return uuid.Nil, false
	}
	return id, true
}
