package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/agentoven/ledger/internal/ledger"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

type received struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
}

func (r *received) handler(status func(n int) int) http.HandlerFunc {
	var calls int32
	return func(w http.ResponseWriter, req *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		r.headers = append(r.headers, req.Header.Clone())
		r.mu.Unlock()
		w.WriteHeader(status(n))
	}
}

func (r *received) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func result(method string) *ledger.Result {
	return &ledger.Result{Method: method, Event: models.NewEvent(method), ID: 7}
}

func closeService(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
}

func TestDeliversSignedEvent(t *testing.T) {
	var got received
	srv := httptest.NewServer(got.handler(func(int) int { return http.StatusOK }))
	defer srv.Close()

	s := NewService([]Webhook{{URL: srv.URL, Secret: "hush"}}, 0)
	s.Publish(result("register_agent"))
	closeService(t, s)

	require.Equal(t, 1, got.count())
	h := got.headers[0]
	assert.Equal(t, "register_agent", h.Get("X-Ledger-Event"))
	assert.Equal(t, "sha256="+Sign("hush", got.bodies[0]), h.Get("X-Ledger-Signature"))

	var d Delivery
	require.NoError(t, json.Unmarshal(got.bodies[0], &d))
	assert.Equal(t, h.Get("X-Ledger-Delivery"), d.ID)
	assert.Equal(t, uint64(7), d.Result.ID)
}

func TestMethodFilter(t *testing.T) {
	var got received
	srv := httptest.NewServer(got.handler(func(int) int { return http.StatusOK }))
	defer srv.Close()

	s := NewService([]Webhook{{URL: srv.URL, Methods: []string{"purchase_listing"}}}, 0)
	s.Publish(result("register_agent"))
	s.Publish(result("purchase_listing"))
	closeService(t, s)

	require.Equal(t, 1, got.count())
	assert.Equal(t, "purchase_listing", got.headers[0].Get("X-Ledger-Event"))
}

func TestRetriesServerErrors(t *testing.T) {
	var got received
	srv := httptest.NewServer(got.handler(func(n int) int {
		if n < 3 {
			return http.StatusBadGateway
		}
		return http.StatusNoContent
	}))
	defer srv.Close()

	s := NewService([]Webhook{{URL: srv.URL}}, 0, WithRetry(3, time.Millisecond))
	s.Publish(result("list_agent"))
	closeService(t, s)

	assert.Equal(t, 3, got.count())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var got received
	srv := httptest.NewServer(got.handler(func(int) int { return http.StatusBadRequest }))
	defer srv.Close()

	s := NewService([]Webhook{{URL: srv.URL}}, 0, WithRetry(3, time.Millisecond))
	s.Publish(result("list_agent"))
	closeService(t, s)

	assert.Equal(t, 1, got.count())
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	s := NewService([]Webhook{{URL: "http://127.0.0.1:0"}}, 1)
	closeService(t, s)
	assert.NotPanics(t, func() { s.Publish(result("list_agent")) })
}

func TestSubscribes(t *testing.T) {
	assert.True(t, Webhook{}.subscribes("anything"))
	assert.True(t, Webhook{Methods: []string{"*"}}.subscribes("anything"))
	assert.False(t, Webhook{Methods: []string{"list_agent"}}.subscribes("remove_listing"))
}
