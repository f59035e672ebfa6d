package httpdto

// FeedbackRequest is used for POST /v1/interactions/:id/feedback
type FeedbackRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// ResolveRequest is used for POST /v1/interactions/:id/resolve
type ResolveRequest struct {
	Status string `json:"status" binding:"required"`
}

// ChatCallbackRequest carries an inline button press from the chat transport
type ChatCallbackRequest struct {
	ExternalID int64  `json:"external_id" binding:"required"`
	Data       string `json:"data" binding:"required"`
}

// ChatCallbackResponse tells the transport what to answer the button press with
type ChatCallbackResponse struct {
	Kind        string           `json:"kind"`
	Answer      string           `json:"answer"`
	Interaction *InteractionDTO  `json:"interaction,omitempty"`
	Respond     *RespondResponse `json:"respond,omitempty"`
}
