package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/notify"
	"dealbroker/internal/repository/memory"
	"dealbroker/internal/services"
)

type recordingDeliverer struct {
	mu   sync.Mutex
	sent map[int64][]notify.Message
}

func (d *recordingDeliverer) Deliver(_ context.Context, chatID int64, msg notify.Message, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent[chatID] = append(d.sent[chatID], msg)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testAPI struct {
	engine    *gin.Engine
	deliverer *recordingDeliverer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	deliverer := &recordingDeliverer{sent: map[int64][]notify.Message{}}
	policy := interaction.PostponePolicy{Delay: 72 * time.Hour, MaxPostpones: 3}

	users := services.NewUserService(store.Repos().Users)
	tasks := services.NewTaskService(store)
	interactions := services.NewInteractionService(store, policy, nil)
	responses := services.NewOfferResponseService(store, interactions, deliverer, nil, nil)

	uh := NewUserHandler(users)
	th := NewTaskHandler(tasks, responses)
	ih := NewInteractionHandler(interactions)
	ch := NewCallbackHandler(users, responses, interactions)

	r := gin.New()
	v1 := r.Group("/v1")
	v1.POST("/users", uh.Register)
	v1.POST("/verification", uh.SetVerification)
	v1.POST("/tasks", th.Create)
	v1.GET("/tasks/:id", th.Get)
	v1.POST("/payments/confirm", th.ConfirmPayment)
	v1.POST("/moderation/tasks/:id/approve", th.Approve)
	v1.POST("/tasks/:id/responses", th.Respond)
	v1.GET("/interactions/:id", ih.Get)
	v1.POST("/interactions/:id/feedback", ih.Feedback)
	v1.POST("/interactions/:id/resolve", ih.Resolve)
	v1.POST("/chat/callback", ch.Handle)

	return &testAPI{engine: r, deliverer: deliverer}
}

func (a *testAPI) call(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type idOnly struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (a *testAPI) register(t *testing.T, ext int64, name, role string, confirm bool) string {
	t.Helper()
	code, env := a.call(t, http.MethodPost, "/v1/users", map[string]any{"external_id": ext, "username": name, "role": role})
	require.Equal(t, http.StatusCreated, code, env.Error)
	id := decode[idOnly](t, env).ID
	if confirm {
		code, env = a.call(t, http.MethodPost, "/v1/verification", map[string]any{"user_id": id, "confirmed": true})
		require.Equal(t, http.StatusOK, code, env.Error)
	}
	return id
}

// activeTask creates a one-slot task and walks it to ACTIVE.
func (a *testAPI) activeTask(t *testing.T, ownerID string) string {
	t.Helper()
	code, env := a.call(t, http.MethodPost, "/v1/tasks", map[string]any{
		"owner_id": ownerID, "title": "Review video", "price": "2500.00", "slots_needed": 1,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	taskID := decode[idOnly](t, env).ID

	code, env = a.call(t, http.MethodPost, "/v1/payments/confirm", map[string]any{"task_id": taskID, "amount": "2500"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "PENDING_REVIEW", decode[idOnly](t, env).Status)

	code, env = a.call(t, http.MethodPost, "/v1/moderation/tasks/"+taskID+"/approve", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "ACTIVE", decode[idOnly](t, env).Status)
	return taskID
}

func TestDealThroughCallbacks(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register(t, 100, "owner", "requester", false)
	worker := api.register(t, 200, "worker", "fulfiller", true)
	taskID := api.activeTask(t, owner)

	code, env := api.call(t, http.MethodPost, "/v1/chat/callback", map[string]any{
		"external_id": 200, "data": "offer:" + taskID,
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	cb := decode[struct {
		Kind    string `json:"kind"`
		Respond struct {
			Task         idOnly `json:"task"`
			Responses    int    `json:"responses"`
			Interaction  idOnly `json:"interaction"`
			ContactsSent bool   `json:"contacts_sent"`
		} `json:"respond"`
	}](t, env)
	assert.Equal(t, "offer", cb.Kind)
	assert.Equal(t, "CLOSED", cb.Respond.Task.Status)
	assert.Equal(t, 1, cb.Respond.Responses)
	assert.True(t, cb.Respond.ContactsSent)
	require.Len(t, api.deliverer.sent[100], 1)

	code, env = api.call(t, http.MethodPost, "/v1/chat/callback", map[string]any{
		"external_id": 200, "data": "offer:" + taskID,
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "TASK_NOT_ACTIVE", env.Code)

	interactionID := cb.Respond.Interaction.ID
	code, env = api.call(t, http.MethodPost, "/v1/chat/callback", map[string]any{
		"external_id": 100, "data": "feedback:req:" + interactionID + ":ok",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = api.call(t, http.MethodPost, "/v1/chat/callback", map[string]any{
		"external_id": 200, "data": "feedback:req:" + interactionID + ":ok",
	})
	assert.Equal(t, http.StatusForbidden, code, "the fulfiller cannot press the requester's button")
	assert.Equal(t, "NOT_PARTICIPANT", env.Code)

	code, env = api.call(t, http.MethodPost, "/v1/interactions/"+interactionID+"/feedback", map[string]any{
		"user_id": worker, "text": "всё прошло отлично",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "OK", decode[idOnly](t, env).Status)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register(t, 100, "owner", "requester", false)
	unconfirmed := api.register(t, 300, "newbie", "fulfiller", false)

	code, env := api.call(t, http.MethodGet, "/v1/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", env.Code)

	code, env = api.call(t, http.MethodGet, "/v1/tasks/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Code)

	code, env = api.call(t, http.MethodPost, "/v1/users", map[string]any{"external_id": 1, "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.call(t, http.MethodPost, "/v1/tasks", map[string]any{
		"owner_id": owner, "title": "Task", "price": "100", "slots_needed": 1,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	taskID := decode[idOnly](t, env).ID

	code, env = api.call(t, http.MethodPost, "/v1/payments/confirm", map[string]any{"task_id": taskID, "amount": "99.99"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "AMOUNT_MISMATCH", env.Code)

	code, env = api.call(t, http.MethodPost, "/v1/moderation/tasks/"+taskID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", env.Code)

	active := api.activeTask(t, owner)
	code, env = api.call(t, http.MethodPost, "/v1/tasks/"+active+"/responses", map[string]any{"fulfiller_id": unconfirmed})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "PROFILE_UNCONFIRMED", env.Code)

	code, env = api.call(t, http.MethodPost, "/v1/chat/callback", map[string]any{"external_id": 100, "data": "bogus"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.call(t, http.MethodPost, "/v1/chat/callback", map[string]any{"external_id": 999, "data": "offer:" + active})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestResolveOnlyFromIssue(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register(t, 100, "owner", "requester", false)
	worker := api.register(t, 200, "worker", "fulfiller", true)
	taskID := api.activeTask(t, owner)

	code, env := api.call(t, http.MethodPost, "/v1/tasks/"+taskID+"/responses", map[string]any{"fulfiller_id": worker})
	require.Equal(t, http.StatusCreated, code, env.Error)
	interactionID := decode[struct {
		Interaction idOnly `json:"interaction"`
	}](t, env).Interaction.ID

	code, env = api.call(t, http.MethodPost, "/v1/interactions/"+interactionID+"/resolve", map[string]any{"status": "OK"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NOT_ISSUE", env.Code)

	code, env = api.call(t, http.MethodPost, "/v1/interactions/"+interactionID+"/feedback", map[string]any{
		"user_id": owner, "text": "проблема, не отвечает",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "ISSUE", decode[idOnly](t, env).Status)

	code, env = api.call(t, http.MethodPost, "/v1/interactions/"+interactionID+"/resolve", map[string]any{"status": "NO_DEAL"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "NO_DEAL", decode[idOnly](t, env).Status)

	code, env = api.call(t, http.MethodGet, "/v1/interactions/"+interactionID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "NO_DEAL", decode[idOnly](t, env).Status)
}
