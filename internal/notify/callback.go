package notify

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dealbroker/internal/domain/interaction"
	broker_errors "dealbroker/pkg/errors"
)

// Callback kinds carried in button data.
const (
	CallbackOffer    = "offer"
	CallbackFeedback = "feedback"
)

var sideCodes = map[interaction.Side]string{
	interaction.SideRequester: "req",
	interaction.SideFulfiller: "ful",
}

var outcomeCodes = map[interaction.Outcome]string{
	interaction.OutcomeOK:       "ok",
	interaction.OutcomeNoDeal:   "no_deal",
	interaction.OutcomePostpone: "postpone",
	interaction.OutcomeIssue:    "issue",
}

// Callback is parsed button data.
type Callback struct {
	Kind          string
	TaskID        uuid.UUID
	InteractionID uuid.UUID
	Side          interaction.Side
	Outcome       interaction.Outcome
}

// OfferCallbackData is attached to the "take the offer" button.
func OfferCallbackData(taskID uuid.UUID) string {
	return CallbackOffer + ":" + taskID.String()
}

// FeedbackCallbackData is attached to each feedback button.
func FeedbackCallbackData(side interaction.Side, interactionID uuid.UUID, o interaction.Outcome) string {
	return fmt.Sprintf("%s:%s:%s:%s", CallbackFeedback, sideCodes[side], interactionID, outcomeCodes[o])
}

// ParseCallback decodes offer:<task_id> and
// feedback:<req|ful>:<interaction_id>:<ok|no_deal|postpone|issue>.
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 2 && parts[0] == CallbackOffer:
		id, err := uuid.Parse(parts[1])
		if err != nil {
			return Callback{}, fmt.Errorf("offer callback task id: %w", broker_errors.ErrInvalidInput)
		}
		return Callback{Kind: CallbackOffer, TaskID: id}, nil

	case len(parts) == 4 && parts[0] == CallbackFeedback:
		cb := Callback{Kind: CallbackFeedback}
		for side, code := range sideCodes {
			if code == parts[1] {
				cb.Side = side
			}
		}
		for o, code := range outcomeCodes {
			if code == parts[3] {
				cb.Outcome = o
			}
		}
		id, err := uuid.Parse(parts[2])
		if err != nil || cb.Side == "" || cb.Outcome == "" {
			return Callback{}, fmt.Errorf("malformed feedback callback %q: %w", data, broker_errors.ErrInvalidInput)
		}
		cb.InteractionID = id
		return cb, nil
	}
	return Callback{}, fmt.Errorf("unknown callback %q: %w", data, broker_errors.ErrInvalidInput)
}
