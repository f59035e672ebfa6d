package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "dealbroker/internal/domain/outbox"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/domain/user"
	broker_errors "dealbroker/pkg/errors"
)

func TestTaskLifecycleRecordsActivationEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := f.user(t, "shop", user.RoleRequester, false)
	price := decimal.RequireFromString("1200.50")

	tk, err := f.tasks.Create(ctx, CreateTaskInput{OwnerID: owner.ID, Title: " Unboxing ", Price: price, SlotsNeeded: 2})
	require.NoError(t, err)
	assert.Equal(t, task.StatusDraft, tk.Status)
	assert.Equal(t, "Unboxing", tk.Title)
	assert.Empty(t, f.store.Events(), "payment alone emits nothing")

	tk, err = f.tasks.ConfirmPayment(ctx, tk.ID, decimal.RequireFromString("1200.5"))
	require.NoError(t, err)
	assert.Equal(t, task.StatusPendingReview, tk.Status)
	assert.Empty(t, f.store.Events())

	tk, err = f.tasks.Approve(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusActive, tk.Status)

	evs := f.store.Events()
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, domain.EventTaskActivated, ev.EventType)
	assert.Equal(t, domain.AggregateTask, ev.AggregateType)
	assert.Equal(t, tk.ID, ev.AggregateID)
	assert.Equal(t, domain.StatusPending, ev.Status)

	var payload domain.TaskActivatedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, tk.ID, payload.TaskID)
	assert.Equal(t, 2, payload.SlotsNeeded)
}

func TestConfirmPaymentRejectsWrongAmount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := f.user(t, "shop", user.RoleRequester, false)
	tk, err := f.tasks.Create(ctx, CreateTaskInput{OwnerID: owner.ID, Title: "t", Price: decimal.NewFromInt(100), SlotsNeeded: 1})
	require.NoError(t, err)

	_, err = f.tasks.ConfirmPayment(ctx, tk.ID, decimal.NewFromInt(99))
	assert.ErrorIs(t, err, broker_errors.ErrAmountMismatch)

	got, err := f.tasks.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDraft, got.Status)
}

func TestTaskTransitionsAreForwardOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := f.user(t, "shop", user.RoleRequester, false)
	tk := f.activeTask(t, owner, 1)

	_, err := f.tasks.Approve(ctx, tk.ID)
	assert.ErrorIs(t, err, broker_errors.ErrInvalidTransition)
	_, err = f.tasks.ConfirmPayment(ctx, tk.ID, tk.Price)
	assert.ErrorIs(t, err, broker_errors.ErrInvalidTransition)
	assert.Len(t, f.store.Events(), 1, "a rejected approval adds no event")
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := f.user(t, "shop", user.RoleRequester, false)

	cases := []CreateTaskInput{
		{OwnerID: owner.ID, Title: "", Price: decimal.NewFromInt(1), SlotsNeeded: 1},
		{OwnerID: owner.ID, Title: "t", Price: decimal.Zero, SlotsNeeded: 1},
		{OwnerID: owner.ID, Title: "t", Price: decimal.NewFromInt(1), SlotsNeeded: 0},
	}
	for _, in := range cases {
		_, err := f.tasks.Create(ctx, in)
		assert.ErrorIs(t, err, broker_errors.ErrInvalidInput)
	}

	_, err := f.tasks.Create(ctx, CreateTaskInput{OwnerID: uuid.New(), Title: "t", Price: decimal.NewFromInt(1), SlotsNeeded: 1})
	assert.ErrorIs(t, err, broker_errors.ErrNotFound)
}
