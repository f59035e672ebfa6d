package handler

import (
	"net/http"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/notify"
	"dealbroker/internal/services"
	"dealbroker/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// CallbackHandler receives inline button presses relayed by the chat
// transport. The caller is identified by its chat id.
type CallbackHandler struct {
	users        *services.UserService
	responses    *services.OfferResponseService
	interactions *services.InteractionService
}

func NewCallbackHandler(users *services.UserService, responses *services.OfferResponseService, interactions *services.InteractionService) *CallbackHandler {
	return &CallbackHandler{users: users, responses: responses, interactions: interactions}
}

func (h *CallbackHandler) Handle(c *gin.Context) {
	var req httpdto.ChatCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalid(c, "invalid request")
		return
	}
	cb, err := notify.ParseCallback(req.Data)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	caller, err := h.users.GetByExternalID(ctx, req.ExternalID)
	if err != nil {
		writeError(c, err)
		return
	}

	switch cb.Kind {
	case notify.CallbackOffer:
		res, err := h.responses.Respond(ctx, cb.TaskID, caller.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		out := respondDTO(res)
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ChatCallbackResponse{
			Kind:    cb.Kind,
			Answer:  "Контакты отправлены заказчику",
			Respond: &out,
		}))
	case notify.CallbackFeedback:
		i, err := h.interactions.SubmitFeedback(ctx, services.FeedbackInput{
			InteractionID: cb.InteractionID,
			UserID:        caller.ID,
			Side:          cb.Side,
			Text:          interaction.ButtonText[cb.Outcome],
		})
		if err != nil {
			writeError(c, err)
			return
		}
		out := httpdto.FromInteraction(i)
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ChatCallbackResponse{
			Kind:        cb.Kind,
			Answer:      "Спасибо, ответ записан",
			Interaction: &out,
		}))
	}
}
