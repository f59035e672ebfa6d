package handler

import (
	"net/http"

	"dealbroker/internal/services"
	"dealbroker/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	tasks     *services.TaskService
	responses *services.OfferResponseService
}

func NewTaskHandler(tasks *services.TaskService, responses *services.OfferResponseService) *TaskHandler {
	return &TaskHandler{tasks: tasks, responses: responses}
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req httpdto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalid(c, "invalid request")
		return
	}
	ownerID, ok := parseID(c, req.OwnerID, "owner_id")
	if !ok {
		return
	}

	t, err := h.tasks.Create(c.Request.Context(), services.CreateTaskInput{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		SlotsNeeded: req.SlotsNeeded,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromTask(t)))
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "task id")
	if !ok {
		return
	}

	t, err := h.tasks.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromTask(t)))
}

func (h *TaskHandler) ConfirmPayment(c *gin.Context) {
	var req httpdto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalid(c, "invalid request")
		return
	}
	id, ok := parseID(c, req.TaskID, "task_id")
	if !ok {
		return
	}

	t, err := h.tasks.ConfirmPayment(c.Request.Context(), id, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromTask(t)))
}

// Approve is the moderator's decision; it activates the task and queues the
// offer fan-out.
func (h *TaskHandler) Approve(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"), "task id")
	if !ok {
		return
	}

	t, err := h.tasks.Approve(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromTask(t)))
}

func (h *TaskHandler) Respond(c *gin.Context) {
	taskID, ok := parseID(c, c.Param("id"), "task id")
	if !ok {
		return
	}
	var req httpdto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalid(c, "invalid request")
		return
	}
	fulfillerID, ok := parseID(c, req.FulfillerID, "fulfiller_id")
	if !ok {
		return
	}

	res, err := h.responses.Respond(c.Request.Context(), taskID, fulfillerID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(respondDTO(res)))
}

func respondDTO(res services.RespondResult) httpdto.RespondResponse {
	return httpdto.RespondResponse{
		Task:         httpdto.FromTask(res.Task),
		Responses:    res.Responses,
		Interaction:  httpdto.FromInteraction(res.Interaction),
		ContactsSent: res.ContactsSent,
	}
}
