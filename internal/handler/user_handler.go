package handler

import (
	"net/http"

	"dealbroker/internal/domain/user"
	"dealbroker/internal/services"
	"dealbroker/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req httpdto.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalid(c, "invalid request")
		return
	}

	u, err := h.service.Register(c.Request.Context(), services.RegisterUserInput{
		ExternalID: req.ExternalID,
		Username:   req.Username,
		Role:       user.Role(req.Role),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}

// SetVerification records the outcome of a fulfiller's profile check.
func (h *UserHandler) SetVerification(c *gin.Context) {
	var req httpdto.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalid(c, "invalid request")
		return
	}
	id, ok := parseID(c, req.UserID, "user_id")
	if !ok {
		return
	}

	u, err := h.service.SetVerification(c.Request.Context(), id, req.Confirmed)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}
