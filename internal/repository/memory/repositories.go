package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/domain/outbox"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/domain/user"
	broker_errors "dealbroker/pkg/errors"
)

type userRepo struct{ *binding }

func (r *userRepo) Create(_ context.Context, u *user.User) error {
	st, release := r.acquire()
	defer release()

	for _, existing := range st.users {
		if existing.ID == u.ID || existing.ExternalID == u.ExternalID {
			return broker_errors.ErrAlreadyExists
		}
	}
	st.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	st, release := r.acquire()
	defer release()

	u, ok := st.users[id]
	if !ok {
		return user.User{}, broker_errors.ErrNotFound
	}
	return u, nil
}

func (r *userRepo) GetByExternalID(_ context.Context, externalID int64) (user.User, error) {
	st, release := r.acquire()
	defer release()

	for _, u := range st.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}
	return user.User{}, broker_errors.ErrNotFound
}

func (r *userRepo) SetConfirmed(_ context.Context, id uuid.UUID, confirmed bool, at time.Time) error {
	st, release := r.acquire()
	defer release()

	u, ok := st.users[id]
	if !ok {
		return broker_errors.ErrNotFound
	}
	u.Confirmed = confirmed
	u.ConfirmedAt = nil
	if confirmed {
		u.ConfirmedAt = broker_errors.TimePtr(at)
	}
	u.UpdatedAt = at
	st.users[id] = u
	return nil
}

func (r *userRepo) SetStatus(_ context.Context, id uuid.UUID, status user.Status, at time.Time) error {
	st, release := r.acquire()
	defer release()

	u, ok := st.users[id]
	if !ok {
		return broker_errors.ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = at
	st.users[id] = u
	return nil
}

func (r *userRepo) ListEligibleFulfillers(_ context.Context, ownerID uuid.UUID, limit int) ([]user.User, error) {
	st, release := r.acquire()
	defer release()

	var out []user.User
	for _, u := range st.users {
		if u.EligibleFor(ownerID) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ConfirmedAt, out[j].ConfirmedAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type taskRepo struct{ *binding }

func (r *taskRepo) Create(_ context.Context, t *task.Task) error {
	st, release := r.acquire()
	defer release()

	if _, ok := st.tasks[t.ID]; ok {
		return broker_errors.ErrAlreadyExists
	}
	st.tasks[t.ID] = *t
	return nil
}

func (r *taskRepo) GetByID(_ context.Context, id uuid.UUID) (task.Task, error) {
	st, release := r.acquire()
	defer release()

	t, ok := st.tasks[id]
	if !ok {
		return task.Task{}, broker_errors.ErrNotFound
	}
	return t, nil
}

func (r *taskRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (task.Task, error) {
	return r.GetByID(ctx, id)
}

func (r *taskRepo) UpdateStatus(_ context.Context, t task.Task) error {
	st, release := r.acquire()
	defer release()

	cur, ok := st.tasks[t.ID]
	if !ok {
		return broker_errors.ErrNotFound
	}
	cur.Status = t.Status
	cur.CompletedAt = t.CompletedAt
	cur.UpdatedAt = t.UpdatedAt
	st.tasks[t.ID] = cur
	return nil
}

type responseRepo struct{ *binding }

func (r *responseRepo) Create(_ context.Context, resp *task.Response) error {
	st, release := r.acquire()
	defer release()

	for _, existing := range st.responses {
		if existing.TaskID == resp.TaskID && existing.FulfillerID == resp.FulfillerID {
			return broker_errors.ErrDuplicateResponse
		}
	}
	st.responses[resp.ID] = *resp
	return nil
}

func (r *responseRepo) Exists(_ context.Context, taskID, fulfillerID uuid.UUID) (bool, error) {
	st, release := r.acquire()
	defer release()

	for _, existing := range st.responses {
		if existing.TaskID == taskID && existing.FulfillerID == fulfillerID {
			return true, nil
		}
	}
	return false, nil
}

func (r *responseRepo) CountByTask(_ context.Context, taskID uuid.UUID) (int, error) {
	st, release := r.acquire()
	defer release()

	n := 0
	for _, existing := range st.responses {
		if existing.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

type dispatchRepo struct{ *binding }

func (r *dispatchRepo) MarkSent(_ context.Context, d task.Dispatch) error {
	st, release := r.acquire()
	defer release()

	key := dispatchKey{taskID: d.TaskID, fulfillerID: d.FulfillerID}
	if _, ok := st.dispatches[key]; !ok {
		st.dispatches[key] = d
	}
	return nil
}

func (r *dispatchRepo) ListSent(_ context.Context, taskID uuid.UUID) (map[uuid.UUID]bool, error) {
	st, release := r.acquire()
	defer release()

	sent := make(map[uuid.UUID]bool)
	for key := range st.dispatches {
		if key.taskID == taskID {
			sent[key.fulfillerID] = true
		}
	}
	return sent, nil
}

type interactionRepo struct{ *binding }

func (r *interactionRepo) Create(_ context.Context, i *interaction.Interaction) error {
	st, release := r.acquire()
	defer release()

	for _, existing := range st.interactions {
		if existing.ID == i.ID ||
			(existing.TaskID == i.TaskID && existing.FulfillerID == i.FulfillerID && existing.RequesterID == i.RequesterID) {
			return broker_errors.ErrAlreadyExists
		}
	}
	st.interactions[i.ID] = copyInteraction(*i)
	return nil
}

func (r *interactionRepo) GetByID(_ context.Context, id uuid.UUID) (interaction.Interaction, error) {
	st, release := r.acquire()
	defer release()

	i, ok := st.interactions[id]
	if !ok {
		return interaction.Interaction{}, broker_errors.ErrNotFound
	}
	return copyInteraction(i), nil
}

func (r *interactionRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (interaction.Interaction, error) {
	return r.GetByID(ctx, id)
}

func (r *interactionRepo) GetByParticipants(_ context.Context, taskID, fulfillerID, requesterID uuid.UUID) (interaction.Interaction, error) {
	st, release := r.acquire()
	defer release()

	for _, i := range st.interactions {
		if i.TaskID == taskID && i.FulfillerID == fulfillerID && i.RequesterID == requesterID {
			return copyInteraction(i), nil
		}
	}
	return interaction.Interaction{}, broker_errors.ErrNotFound
}

func (r *interactionRepo) Update(_ context.Context, i interaction.Interaction) error {
	st, release := r.acquire()
	defer release()

	if _, ok := st.interactions[i.ID]; !ok {
		return broker_errors.ErrNotFound
	}
	st.interactions[i.ID] = copyInteraction(i)
	return nil
}

func (r *interactionRepo) ListDue(_ context.Context, now time.Time, limit int) ([]interaction.Interaction, error) {
	st, release := r.acquire()
	defer release()

	var due []interaction.Interaction
	for _, i := range st.interactions {
		if i.Status == interaction.StatusPending && i.NextCheckAt != nil && !i.NextCheckAt.After(now) {
			due = append(due, copyInteraction(i))
		}
	}
	sort.Slice(due, func(a, b int) bool {
		return due[a].NextCheckAt.Before(*due[b].NextCheckAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

type outboxRepo struct{ *binding }

func (r *outboxRepo) Create(_ context.Context, event *outbox.OutboxEvent) error {
	st, release := r.acquire()
	defer release()

	if _, ok := st.outbox[event.ID]; ok {
		return broker_errors.ErrAlreadyExists
	}
	st.outbox[event.ID] = *event
	return nil
}

func (r *outboxRepo) GetByID(_ context.Context, id uuid.UUID) (outbox.OutboxEvent, error) {
	st, release := r.acquire()
	defer release()

	event, ok := st.outbox[id]
	if !ok {
		return outbox.OutboxEvent{}, broker_errors.ErrNotFound
	}
	return event, nil
}

func (r *outboxRepo) ClaimBatch(_ context.Context, limit int, now time.Time) ([]outbox.OutboxEvent, error) {
	st, release := r.acquire()
	defer release()

	var claimable []outbox.OutboxEvent
	for _, event := range st.outbox {
		switch {
		case event.Status == outbox.StatusPending:
		case event.Status == outbox.StatusFailed && !event.Terminal:
		default:
			continue
		}
		claimable = append(claimable, event)
	}
	sort.SliceStable(claimable, func(i, j int) bool {
		return claimable[i].CreatedAt.Before(claimable[j].CreatedAt)
	})
	if limit > 0 && len(claimable) > limit {
		claimable = claimable[:limit]
	}
	for i := range claimable {
		claimable[i].Status = outbox.StatusProcessing
		claimable[i].UpdatedAt = now
		st.outbox[claimable[i].ID] = claimable[i]
	}
	return claimable, nil
}

func (r *outboxRepo) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	st, release := r.acquire()
	defer release()

	event, ok := st.outbox[id]
	if !ok || event.Status != outbox.StatusProcessing {
		return broker_errors.ErrNotFound
	}
	event.Status = outbox.StatusPublished
	event.ProcessedAt = broker_errors.TimePtr(at)
	event.UpdatedAt = at
	event.LastError = ""
	st.outbox[id] = event
	return nil
}

func (r *outboxRepo) MarkSkipped(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	st, release := r.acquire()
	defer release()

	event, ok := st.outbox[id]
	if !ok || event.Status != outbox.StatusProcessing {
		return broker_errors.ErrNotFound
	}
	event.Status = outbox.StatusPublished
	event.ProcessedAt = broker_errors.TimePtr(at)
	event.UpdatedAt = at
	event.LastError = reason
	st.outbox[id] = event
	return nil
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, retryCount int, lastError string, terminal bool, at time.Time) error {
	st, release := r.acquire()
	defer release()

	event, ok := st.outbox[id]
	if !ok || event.Status != outbox.StatusProcessing {
		return broker_errors.ErrNotFound
	}
	event.Status = outbox.StatusFailed
	event.RetryCount = retryCount
	event.LastError = lastError
	event.Terminal = terminal
	event.UpdatedAt = at
	st.outbox[id] = event
	return nil
}

func (r *outboxRepo) ReleaseStuck(_ context.Context, cutoff time.Time, maxRetries int, at time.Time) (int, error) {
	st, release := r.acquire()
	defer release()

	n := 0
	for id, event := range st.outbox {
		if event.Status != outbox.StatusProcessing || !event.UpdatedAt.Before(cutoff) {
			continue
		}
		event.Status = outbox.StatusFailed
		event.RetryCount++
		event.Terminal = event.RetryCount >= maxRetries
		event.LastError = "processing timed out"
		event.UpdatedAt = at
		st.outbox[id] = event
		n++
	}
	return n, nil
}

// Events returns every outbox event, oldest first. Test helper.
func (s *Store) Events() []outbox.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]outbox.OutboxEvent, 0, len(s.st.outbox))
	for _, event := range s.st.outbox {
		out = append(out, event)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
