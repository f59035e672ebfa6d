package httpdto

import (
	"time"

	"github.com/shopspring/decimal"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/domain/task"
)

// CreateTaskRequest is used for POST /v1/tasks
type CreateTaskRequest struct {
	OwnerID     string          `json:"owner_id" binding:"required"`
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SlotsNeeded int             `json:"slots_needed" binding:"required,min=1"`
}

// ConfirmPaymentRequest is used for POST /v1/payments/confirm
type ConfirmPaymentRequest struct {
	TaskID string          `json:"task_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// RespondRequest is used for POST /v1/tasks/:id/responses
type RespondRequest struct {
	FulfillerID string `json:"fulfiller_id" binding:"required"`
}

type TaskDTO struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	SlotsNeeded int             `json:"slots_needed"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func FromTask(t task.Task) TaskDTO {
	return TaskDTO{
		ID:          t.ID.String(),
		OwnerID:     t.OwnerID.String(),
		Title:       t.Title,
		Description: t.Description,
		Price:       t.Price,
		SlotsNeeded: t.SlotsNeeded,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

// RespondResponse is returned after a fulfiller takes an offer
type RespondResponse struct {
	Task         TaskDTO        `json:"task"`
	Responses    int            `json:"responses"`
	Interaction  InteractionDTO `json:"interaction"`
	ContactsSent bool           `json:"contacts_sent"`
}

type InteractionDTO struct {
	ID            string     `json:"id"`
	TaskID        string     `json:"task_id"`
	FulfillerID   string     `json:"fulfiller_id"`
	RequesterID   string     `json:"requester_id"`
	Status        string     `json:"status"`
	FromRequester string     `json:"from_requester,omitempty"`
	FromFulfiller string     `json:"from_fulfiller,omitempty"`
	PostponeCount int        `json:"postpone_count"`
	NextCheckAt   *time.Time `json:"next_check_at,omitempty"`
	Override      string     `json:"override,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func FromInteraction(i interaction.Interaction) InteractionDTO {
	out := InteractionDTO{
		ID:            i.ID.String(),
		TaskID:        i.TaskID.String(),
		FulfillerID:   i.FulfillerID.String(),
		RequesterID:   i.RequesterID.String(),
		Status:        string(i.Status),
		PostponeCount: i.PostponeCount,
		NextCheckAt:   i.NextCheckAt,
		Override:      string(i.Override),
		UpdatedAt:     i.UpdatedAt,
	}
	if i.FromRequester != nil {
		out.FromRequester = string(*i.FromRequester)
	}
	if i.FromFulfiller != nil {
		out.FromFulfiller = string(*i.FromFulfiller)
	}
	return out
}
