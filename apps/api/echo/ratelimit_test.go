package echoapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/minerva/apps/api/echo"
	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/testutil"
)

// fakeRedis implements the few commands the rate limiter runs.
type fakeRedis struct {
	redis.Cmdable

	mu       sync.Mutex
	counters map[string]int64
	ttls     map[string]time.Duration
	down     bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counters: make(map[string]int64), ttls: make(map[string]time.Duration)}
}

func (r *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "incr", key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	r.counters[key]++
	cmd.SetVal(r.counters[key])
	return cmd
}

func (r *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "expire", key, expiration)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttls[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func (r *fakeRedis) TTL(ctx context.Context, key string) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(ctx, time.Second, "ttl", key)
	r.mu.Lock()
	defer r.mu.Unlock()
	ttl, ok := r.ttls[key]
	if !ok {
		ttl = -1
	}
	cmd.SetVal(ttl)
	return cmd
}

func TestRateLimiter_Limit(t *testing.T) {
	conf := core.NewTestConfig()
	client := newFakeRedis()
	limiter := echoapi.NewRateLimiter(client, testutil.NewLogger(conf))

	e := echo.New()
	e.GET("/", func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) }, limiter.Limit("test", 2, time.Minute))

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, request("192.0.2.1").Code)
	assert.Equal(t, http.StatusNoContent, request("192.0.2.1").Code)

	rec := request("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, time.Minute, client.ttls["rate_limit:test:192.0.2.1"])

	// other clients have their own window
	assert.Equal(t, http.StatusNoContent, request("192.0.2.2").Code)

	t.Run("redis unavailable", func(t *testing.T) {
		client.mu.Lock()
		client.down = true
		client.mu.Unlock()

		assert.Equal(t, http.StatusNoContent, request("192.0.2.1").Code)
	})
}

func TestServer_loginRateLimit(t *testing.T) {
	conf := core.NewTestConfig()
	app := newTestApp(t, echoapi.NewRateLimiter(newFakeRedis(), testutil.NewLogger(conf)))

	for i := 0; i < app.conf.Redis.LoginLimit; i++ {
		rec := app.do(t, http.MethodPost, "/v1/users/login", "", echoapi.LoginRequest{Username: "nobody", Password: "x"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := app.do(t, http.MethodPost, "/v1/users/login", "", echoapi.LoginRequest{Username: "nobody", Password: "x"})
	requireStatus(t, rec, http.StatusTooManyRequests)
	assert.Equal(t, "too many requests, try again later", errorOf(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other endpoints are not throttled by the login window
	rec = app.do(t, http.MethodPost, "/v1/users/password-reset", "", echoapi.PasswordResetRequest{Email: "nobody@example.com"})
	requireStatus(t, rec, http.StatusOK)
}
