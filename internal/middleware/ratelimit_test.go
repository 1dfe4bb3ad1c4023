package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingLimiter keeps the window in memory: limited once maxAttempts prior
// attempts exist, mirroring the check-before-record contract.
type countingLimiter struct {
	counts   map[string]int
	checkErr error
	recErr   error
}

func (l *countingLimiter) CheckRate(_ context.Context, origin string, maxAttempts int, _ time.Duration) (bool, int, error) {
	if l.checkErr != nil {
		return false, 0, l.checkErr
	}
	n := l.counts[origin]
	return n >= maxAttempts, n, nil
}

func (l *countingLimiter) RecordAttempt(_ context.Context, origin string) error {
	if l.recErr != nil {
		return l.recErr
	}
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[origin]++
	return nil
}

func fire(e *echo.Echo, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBudgetPerOrigin(t *testing.T) {
	lim := &countingLimiter{}
	handled := 0

	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		handled++
		return c.NoContent(http.StatusOK)
	}, RateLimit(lim, 10, 30*time.Minute))

	for i := 0; i < 10; i++ {
		rec := fire(e, "203.0.113.9:4711")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	// the 11th is rejected before the handler runs
	rec := fire(e, "203.0.113.9:4711")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 10, handled)
	assert.Contains(t, rec.Body.String(), "too_many_requests")
	assert.Contains(t, rec.Body.String(), `"retry_after_minutes":30`)

	// a different origin is untouched
	rec = fire(e, "198.51.100.4:9")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitRecordsWhileLimited(t *testing.T) {
	lim := &countingLimiter{counts: map[string]int{"203.0.113.9": 10}}

	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RateLimit(lim, 10, 30*time.Minute))

	rec := fire(e, "203.0.113.9:4711")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 11, lim.counts["203.0.113.9"], "limited requests still count")
}

func TestRateLimitFailsClosed(t *testing.T) {
	e := echo.New()
	boom := errors.New("store down")

	e.POST("/login", func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	}, RateLimit(&countingLimiter{checkErr: boom}, 10, time.Minute))
	rec := fire(e, "203.0.113.9:4711")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	e2 := echo.New()
	e2.POST("/login", func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	}, RateLimit(&countingLimiter{recErr: boom}, 10, time.Minute))
	rec = fire(e2, "203.0.113.9:4711")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestOriginIgnoresForwardedFor(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4711"
	req.Header.Set("X-Forwarded-For", "10.9.9.9")
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "203.0.113.9", RequestOrigin(c))
}

func TestRequestOriginWithoutPort(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9"
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "203.0.113.9", RequestOrigin(c))
	assert.False(t, strings.Contains(RequestOrigin(c), ":"))
}
