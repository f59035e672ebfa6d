package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbroker/internal/domain/outbox"
)

func TestEnvelopeFromOutbox(t *testing.T) {
	taskID := uuid.New()
	payload, err := json.Marshal(outbox.TaskActivatedPayload{TaskID: taskID, SlotsNeeded: 2, Price: "100.00"})
	require.NoError(t, err)

	ev := outbox.OutboxEvent{
		ID:            uuid.New(),
		EventType:     outbox.EventTaskActivated,
		AggregateType: outbox.AggregateTask,
		AggregateID:   taskID,
		Payload:       payload,
		CreatedAt:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
	}

	data, err := json.Marshal(FromOutbox(ev))
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, env.EventID)
	assert.Equal(t, taskID.String(), env.AggregateID)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())

	p, err := env.TaskActivated()
	require.NoError(t, err)
	assert.Equal(t, taskID, p.TaskID)
	assert.Equal(t, 2, p.SlotsNeeded)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"event_id":"00000000-0000-0000-0000-000000000000"}`))
	assert.Error(t, err)
}

func TestTaskActivatedFallsBackToAggregateID(t *testing.T) {
	taskID := uuid.New()
	env := Envelope{EventType: EventTypeTaskActivated, AggregateID: taskID.String(), Payload: json.RawMessage(`{}`)}

	p, err := env.TaskActivated()
	require.NoError(t, err)
	assert.Equal(t, taskID, p.TaskID)

	env.EventType = "task.closed"
	_, err = env.TaskActivated()
	assert.Error(t, err)
}
