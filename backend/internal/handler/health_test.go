package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- Mock for HealthChecker ---

type MockHealthChecker struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil // Default: healthy
}

// --- Tests ---

func TestHealth(t *testing.T) {
	handler := &Handler{cfg: testConfig(), health: &MockHealthChecker{}}

	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestReady(t *testing.T) {
	t.Run("returns 200 OK when database is available", func(t *testing.T) {
		handler := &Handler{cfg: testConfig(), health: &MockHealthChecker{}}

		rr := httptest.NewRecorder()
		handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", rr.Body.String())
	})

	t.Run("returns 503 Service Unavailable when database is down", func(t *testing.T) {
		handler := &Handler{
			cfg: testConfig(),
			health: &MockHealthChecker{
				PingFunc: func(ctx context.Context) error { return errors.New("connection refused") },
			},
		}

		rr := httptest.NewRecorder()
		handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "database unavailable", rr.Body.String())
	})

	t.Run("uses timeout context for ping check", func(t *testing.T) {
		called := false
		handler := &Handler{
			cfg: testConfig(),
			health: &MockHealthChecker{
				PingFunc: func(ctx context.Context) error {
					called = true
					_, hasDeadline := ctx.Deadline()
					assert.True(t, hasDeadline, "Context should have a deadline")
					return nil
				},
			},
		}

		rr := httptest.NewRecorder()
		handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, called, "Ping should have been called")
	})
}
