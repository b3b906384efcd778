package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGet(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		expectBody   string
		expectErr    error
		expectCalls  int32
		expectHeader string
	}{
		{
			name:        "ok on first attempt",
			statuses:    []int{http.StatusOK},
			expectBody:  "hello",
			expectCalls: 1,
		},
		{
			name:        "server error then ok",
			statuses:    []int{http.StatusBadGateway, http.StatusOK},
			expectBody:  "hello",
			expectCalls: 2,
		},
		{
			name:        "not found is not retried",
			statuses:    []int{http.StatusNotFound},
			expectErr:   ErrNotFound,
			expectCalls: 1,
		},
		{
			name:        "server errors exhaust attempts",
			statuses:    []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
			expectErr:   ErrNetwork,
			expectCalls: 3,
		},
		{
			name:        "client error is not retried",
			statuses:    []int{http.StatusForbidden},
			expectErr:   ErrNetwork,
			expectCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

				status := tt.statuses[min(int(n), len(tt.statuses))-1]
				w.WriteHeader(status)
				_, _ = w.Write([]byte("hello"))
			}))
			defer server.Close()

			client := NewClient(time.Second, map[string]string{"User-Agent": "test-agent"}, 3, time.Millisecond)
			body, err := client.Get(context.Background(), server.URL)

			if tt.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectErr))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectBody, string(body))
			}

			assert.Equal(t, tt.expectCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, 5, time.Hour, func() error {
		calls++
		return &RetryableError{Err: errors.New("boom")}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
