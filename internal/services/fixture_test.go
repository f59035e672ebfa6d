package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/domain/user"
	"dealbroker/internal/notify"
	"dealbroker/internal/repository/memory"
)

type delivery struct {
	chatID int64
	msg    notify.Message
	taskID string
}

// mockDeliverer records deliveries; failFor makes every delivery to a chat
// fail.
type mockDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
	failFor    map[int64]bool
}

func (m *mockDeliverer) Deliver(_ context.Context, chatID int64, msg notify.Message, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[chatID] {
		return errors.New("bot was blocked by the user")
	}
	m.deliveries = append(m.deliveries, delivery{chatID: chatID, msg: msg, taskID: taskID})
	return nil
}

func (m *mockDeliverer) recipients() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		out = append(out, d.chatID)
	}
	return out
}

type countingMetrics struct {
	mu     sync.Mutex
	offers int
	closed int
}

func (m *countingMetrics) OfferSent() {
	m.mu.Lock()
	m.offers++
	m.mu.Unlock()
}

func (m *countingMetrics) TaskClosed() {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
}

type fixture struct {
	store     *memory.Store
	deliverer *mockDeliverer
	metrics   *countingMetrics
	now       time.Time
	nextExt   int64

	users        *UserService
	tasks        *TaskService
	interactions *InteractionService
	dispatch     *OfferDispatchService
	responses    *OfferResponseService
}

func newFixture() *fixture {
	f := &fixture{
		store:     memory.New(),
		deliverer: &mockDeliverer{failFor: map[int64]bool{}},
		metrics:   &countingMetrics{},
		now:       time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		nextExt:   1000,
	}
	clock := func() time.Time { return f.now }
	policy := interaction.PostponePolicy{Delay: 72 * time.Hour, MaxPostpones: 3}

	f.users = NewUserService(f.store.Repos().Users)
	f.users.now = clock
	f.tasks = NewTaskService(f.store)
	f.tasks.now = clock
	f.interactions = NewInteractionService(f.store, policy, nil)
	f.interactions.now = clock
	f.dispatch = NewOfferDispatchService(f.store, f.deliverer, 4, f.metrics, nil)
	f.dispatch.now = clock
	f.responses = NewOfferResponseService(f.store, f.interactions, f.deliverer, f.metrics, nil)
	f.responses.now = clock
	return f
}

func (f *fixture) user(t *testing.T, username string, role user.Role, confirmed bool) user.User {
	t.Helper()
	f.nextExt++
	u, err := f.users.Register(context.Background(), RegisterUserInput{ExternalID: f.nextExt, Username: username, Role: role})
	require.NoError(t, err)
	if confirmed {
		// keep confirmation order deterministic
		f.now = f.now.Add(time.Second)
		u, err = f.users.SetVerification(context.Background(), u.ID, true)
		require.NoError(t, err)
	}
	return u
}

// activeTask walks a new task through payment and approval.
func (f *fixture) activeTask(t *testing.T, owner user.User, slots int) task.Task {
	t.Helper()
	ctx := context.Background()
	price := decimal.RequireFromString("2500.00")
	tk, err := f.tasks.Create(ctx, CreateTaskInput{OwnerID: owner.ID, Title: "Review video", Price: price, SlotsNeeded: slots})
	require.NoError(t, err)
	_, err = f.tasks.ConfirmPayment(ctx, tk.ID, price)
	require.NoError(t, err)
	tk, err = f.tasks.Approve(ctx, tk.ID)
	require.NoError(t, err)
	return tk
}

// pair sets up a closed one-slot deal between a requester and a fulfiller
// and returns the opened interaction.
func (f *fixture) pair(t *testing.T) (interaction.Interaction, user.User, user.User) {
	t.Helper()
	requester := f.user(t, "shop", user.RoleRequester, false)
	fulfiller := f.user(t, "creator", user.RoleFulfiller, true)
	tk := f.activeTask(t, requester, 1)
	res, err := f.responses.Respond(context.Background(), tk.ID, fulfiller.ID)
	require.NoError(t, err)
	return res.Interaction, requester, fulfiller
}
