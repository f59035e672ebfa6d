package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealbroker/internal/redis"
	"dealbroker/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/probe", func(c *gin.Context) {
		id, _ := services.OperatorIDFromContext(c.Request.Context())
		c.String(http.StatusOK, id)
	})
	return r
}

func do(r http.Handler, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOperatorAuth(t *testing.T) {
	auth := services.NewAuthService("secret", time.Hour)
	r := newEngine(OperatorAuth(auth))

	w := do(r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.IssueOperatorToken("op-7")
	require.NoError(t, err)
	w = do(r, map[string]string{"Authorization": "bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "op-7", w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestIDMiddleware())

	w := do(r, nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 32)

	w = do(r, map[string]string{RequestIDHeader: "abc"})
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := redis.NewRateLimiter(client, map[string]redis.Limit{
		redis.ScopeCallback: {Max: 2, Window: time.Minute},
	})
	r := newEngine(RateLimit(limiter, redis.ScopeCallback, ClientIP))

	for i := 0; i < 2; i++ {
		w := do(r, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(r, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestRateLimitDisabled(t *testing.T) {
	r := newEngine(RateLimit(nil, redis.ScopeCallback, nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(r, nil).Code)
	}
}
