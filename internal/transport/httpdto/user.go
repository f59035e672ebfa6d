package httpdto

import (
	"time"

	"dealbroker/internal/domain/user"
)

// RegisterUserRequest is used for POST /v1/users
type RegisterUserRequest struct {
	ExternalID int64  `json:"external_id" binding:"required"`
	Username   string `json:"username"`
	Role       string `json:"role" binding:"required"`
}

// VerificationRequest is used for POST /v1/verification
type VerificationRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Confirmed bool   `json:"confirmed"`
}

type UserDTO struct {
	ID          string     `json:"id"`
	ExternalID  int64      `json:"external_id"`
	Username    string     `json:"username,omitempty"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	Confirmed   bool       `json:"confirmed"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func FromUser(u user.User) UserDTO {
	return UserDTO{
		ID:          u.ID.String(),
		ExternalID:  u.ExternalID,
		Username:    u.Username,
		Role:        string(u.Role),
		Status:      string(u.Status),
		Confirmed:   u.Confirmed,
		ConfirmedAt: u.ConfirmedAt,
		CreatedAt:   u.CreatedAt,
	}
}
