// Package memory is an in-process Store used by tests and by STORE=memory
// development runs. A transaction holds the store-wide lock for its whole
// duration and restores a snapshot when it fails, which gives the same
// serialization the Postgres row locks give.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/domain/outbox"
	"dealbroker/internal/domain/task"
	"dealbroker/internal/domain/user"
	"dealbroker/internal/repository"
)

type dispatchKey struct {
	taskID      uuid.UUID
	fulfillerID uuid.UUID
}

type state struct {
	users        map[uuid.UUID]user.User
	tasks        map[uuid.UUID]task.Task
	responses    map[uuid.UUID]task.Response
	dispatches   map[dispatchKey]task.Dispatch
	interactions map[uuid.UUID]interaction.Interaction
	outbox       map[uuid.UUID]outbox.OutboxEvent
}

func newState() *state {
	return &state{
		users:        make(map[uuid.UUID]user.User),
		tasks:        make(map[uuid.UUID]task.Task),
		responses:    make(map[uuid.UUID]task.Response),
		dispatches:   make(map[dispatchKey]task.Dispatch),
		interactions: make(map[uuid.UUID]interaction.Interaction),
		outbox:       make(map[uuid.UUID]outbox.OutboxEvent),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.responses {
		c.responses[k] = v
	}
	for k, v := range s.dispatches {
		c.dispatches[k] = v
	}
	for k, v := range s.interactions {
		c.interactions[k] = copyInteraction(v)
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Repos returns autocommit repositories; every call takes the store lock.
func (s *Store) Repos() repository.Repositories {
	return s.bind(true)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, s.bind(false)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) bind(lock bool) repository.Repositories {
	b := &binding{store: s, lock: lock}
	return repository.Repositories{
		Users:        &userRepo{b},
		Tasks:        &taskRepo{b},
		Responses:    &responseRepo{b},
		Dispatches:   &dispatchRepo{b},
		Interactions: &interactionRepo{b},
		Outbox:       &outboxRepo{b},
	}
}

type binding struct {
	store *Store
	lock  bool
}

// acquire takes the store lock for autocommit repositories and returns the
// current state together with the release func.
func (b *binding) acquire() (*state, func()) {
	if !b.lock {
		return b.store.st, func() {}
	}
	b.store.mu.Lock()
	return b.store.st, b.store.mu.Unlock
}

func copyInteraction(i interaction.Interaction) interaction.Interaction {
	if i.FromRequester != nil {
		o := *i.FromRequester
		i.FromRequester = &o
	}
	if i.FromFulfiller != nil {
		o := *i.FromFulfiller
		i.FromFulfiller = &o
	}
	if i.NextCheckAt != nil {
		t := *i.NextCheckAt
		i.NextCheckAt = &t
	}
	return i
}
