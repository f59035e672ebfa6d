// Package notify delivers chat messages to users: offers, contacts and
// feedback prompts. Deliveries are retried with backoff behind a circuit
// breaker; recipients that stay unreachable are reported as dead letters.
package notify

import "context"

// Button is one inline keyboard button. Data is echoed back by the chat
// platform when the button is pressed.
type Button struct {
	Text string
	Data string
}

// Message is a chat message with an optional inline keyboard, one row per
// slice.
type Message struct {
	Text    string
	Buttons [][]Button
}

// Sender delivers a single message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, chatID int64, msg Message) error

func (f SenderFunc) Send(ctx context.Context, chatID int64, msg Message) error {
	return f(ctx, chatID, msg)
}
