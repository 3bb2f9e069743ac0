package healthcheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChecker(deps ...Dependency) *Checker {
	return NewChecker(Config{
		Dependencies: deps,
		MaxFailures:  2,
		Clock:        clock.NewMock(time.Date(2026, 4, 20, 15, 0, 0, 0, time.UTC)),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func okCheck(context.Context) error { return nil }

func TestCheckerAllHealthy(t *testing.T) {
	c := newTestChecker(Dependency{"redis", okCheck}, Dependency{"database", okCheck})
	c.CheckAll(context.Background())

	assert.Equal(t, Healthy, c.OverallHealth())
	statuses := c.GetAllStatus()
	require.Len(t, statuses, 2)
	assert.Equal(t, "database", statuses[0].Name)
	assert.Equal(t, "redis", statuses[1].Name)
}

func TestCheckerMarksUnhealthyAfterMaxFailures(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	redis := Dependency{"redis", func(context.Context) error {
		if down.Load() {
			return errors.New("connection refused")
		}
		return nil
	}}
	c := newTestChecker(redis, Dependency{"database", okCheck})

	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth(), "one failure is tolerated")

	c.CheckAll(context.Background())
	assert.Equal(t, Degraded, c.OverallHealth())
	st := c.GetStatus("redis")
	require.NotNil(t, st)
	assert.False(t, st.IsHealthy)
	assert.Equal(t, "connection refused", st.LastError)

	down.Store(false)
	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth())
	assert.Equal(t, 0, c.GetStatus("redis").FailureCount)
}

func TestCheckerAllDown(t *testing.T) {
	fail := func(context.Context) error { return errors.New("down") }
	c := newTestChecker(Dependency{"hub", fail})
	c.CheckAll(context.Background())
	c.CheckAll(context.Background())

	assert.Equal(t, Unhealthy, c.OverallHealth())
	assert.Nil(t, c.GetStatus("missing"))
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assert.NoError(t, HTTPProbe(srv.Client(), srv.URL+"/health")(context.Background()))
	assert.Error(t, HTTPProbe(srv.Client(), srv.URL+"/broken")(context.Background()))
}

func TestCheckerStartStop(t *testing.T) {
	var calls atomic.Int32
	c := newTestChecker(Dependency{"hub", func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	c.Start()
	c.Start()
	c.Stop()
	c.Stop()

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestHealthStatusString(t *testing.T) {
	assert.Equal(t, "healthy", Healthy.String())
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "unhealthy", Unhealthy.String())
}
