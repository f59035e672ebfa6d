package handler

import (
	"net/http"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/services"
	"dealbroker/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type InteractionHandler struct {
	service *services.InteractionService
}

func NewInteractionHandler(service *services.InteractionService) *InteractionHandler {
	return &InteractionHandler{service: service}
}

// Feedback takes a free-text report from either party.
func (h *InteractionHandler) Feedback(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "interaction id")
	if !ok {
		return
	}
	var req httpdto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalid(c, "invalid request")
		return
	}
	userID, ok := parseID(c, req.UserID, "user_id")
	if !ok {
		return
	}

	i, err := h.service.SubmitFeedback(c.Request.Context(), services.FeedbackInput{
		InteractionID: id,
		UserID:        userID,
		Text:          req.Text,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromInteraction(i)))
}

func (h *InteractionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "interaction id")
	if !ok {
		return
	}

	i, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromInteraction(i)))
}

func (h *InteractionHandler) Resolve(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "interaction id")
	if !ok {
		return
	}
	var req httpdto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalid(c, "invalid request")
		return
	}

	i, err := h.service.ResolveManually(c.Request.Context(), id, interaction.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromInteraction(i)))
}
