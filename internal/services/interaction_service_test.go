package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbroker/internal/domain/interaction"
	broker_errors "dealbroker/pkg/errors"
)

func TestPostponeThenConfirmedDeal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	i, requester, fulfiller := f.pair(t)

	got, err := f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: requester.ID, Text: "Ещё не связался"})
	require.NoError(t, err)
	assert.Equal(t, interaction.StatusPending, got.Status)
	assert.Equal(t, 1, got.PostponeCount)
	require.NotNil(t, got.NextCheckAt)

	got, err = f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: fulfiller.ID, Text: "✅"})
	require.NoError(t, err)
	assert.Equal(t, interaction.StatusOK, got.Status)
	assert.Nil(t, got.NextCheckAt)

	stored, err := f.interactions.GetByID(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Status, stored.Status)
	assert.Equal(t, "✅", stored.FulfillerText)
}

func TestFourthPostponeEscalates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	i, requester, _ := f.pair(t)

	for n := 1; n <= 3; n++ {
		got, err := f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: requester.ID, Text: "⏳"})
		require.NoError(t, err)
		assert.Equal(t, interaction.StatusPending, got.Status)
		assert.Equal(t, n, got.PostponeCount)
	}

	got, err := f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: requester.ID, Text: "⏳"})
	require.NoError(t, err)
	assert.Equal(t, interaction.StatusNoDeal, got.Status)
	assert.Equal(t, interaction.OverrideEscalated, got.Override)
	assert.Nil(t, got.NextCheckAt)

	_, err = f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: requester.ID, Text: "✅"})
	assert.ErrorIs(t, err, broker_errors.ErrFeedbackClosed)
}

func TestSubmitFeedbackChecksParticipant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	i, requester, _ := f.pair(t)

	_, err := f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: uuid.New(), Text: "✅"})
	assert.ErrorIs(t, err, broker_errors.ErrNotParticipant)

	_, err = f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: requester.ID, Side: interaction.SideFulfiller, Text: "✅"})
	assert.ErrorIs(t, err, broker_errors.ErrNotParticipant)

	_, err = f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: requester.ID, Text: "   "})
	assert.ErrorIs(t, err, broker_errors.ErrInvalidInput)

	_, err = f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: uuid.New(), UserID: requester.ID, Text: "✅"})
	assert.ErrorIs(t, err, broker_errors.ErrNotFound)
}

func TestResolveManuallyOnlyFromIssue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	i, requester, _ := f.pair(t)

	_, err := f.interactions.ResolveManually(ctx, i.ID, interaction.StatusOK)
	assert.ErrorIs(t, err, broker_errors.ErrInteractionNotIssue)

	got, err := f.interactions.SubmitFeedback(ctx, FeedbackInput{InteractionID: i.ID, UserID: requester.ID, Text: "Проблема: исполнитель пропал"})
	require.NoError(t, err)
	require.Equal(t, interaction.StatusIssue, got.Status)

	_, err = f.interactions.ResolveManually(ctx, i.ID, interaction.StatusPending)
	assert.ErrorIs(t, err, broker_errors.ErrInvalidInput)

	got, err = f.interactions.ResolveManually(ctx, i.ID, interaction.StatusNoDeal)
	require.NoError(t, err)
	assert.Equal(t, interaction.StatusNoDeal, got.Status)
	assert.Equal(t, interaction.OverrideManual, got.Override)
}

func TestConcurrentSidesConvergeRegardlessOfOrder(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture()
		ctx := context.Background()
		i, requester, fulfiller := f.pair(t)

		var wg sync.WaitGroup
		for _, in := range []FeedbackInput{
			{InteractionID: i.ID, UserID: requester.ID, Text: "❌ Не договорились"},
			{InteractionID: i.ID, UserID: fulfiller.ID, Text: "❌"},
		} {
			wg.Add(1)
			go func(in FeedbackInput) {
				defer wg.Done()
				_, err := f.interactions.SubmitFeedback(ctx, in)
				assert.NoError(t, err)
			}(in)
		}
		wg.Wait()

		got, err := f.interactions.GetByID(ctx, i.ID)
		require.NoError(t, err)
		assert.Equal(t, interaction.StatusNoDeal, got.Status)
		assert.Nil(t, got.NextCheckAt)
	}
}

func TestOpenForContactsSchedulesFirstCheck(t *testing.T) {
	f := newFixture()
	taskID, fl, req := uuid.New(), uuid.New(), uuid.New()

	i, err := f.interactions.OpenForContacts(context.Background(), taskID, fl, req)
	require.NoError(t, err)
	require.NotNil(t, i.NextCheckAt)
	assert.Equal(t, f.now.Add(72*time.Hour), *i.NextCheckAt)
	assert.Equal(t, interaction.StatusPending, i.Status)
}
