package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/satprep-labs/practice-session-service/internal/client"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatcher(t *testing.T, handler http.Handler, depth int) *Dispatcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	token := func(ctx context.Context) (string, error) { return "test-token", nil }
	api := client.New(srv.URL, token)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewDispatcher(api, logger, depth)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	var got []string
	done := make(chan struct{})
	d := testDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req client.SubmitAnswerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req.UserAnswer[0])
		if len(got) == 3 {
			close(done)
		}
		json.NewEncoder(w).Encode(client.SubmitAnswerResponse{})
	}), 8)

	for _, v := range []string{"A", "B", "C"} {
		d.Enqueue("sess-1", "q-"+v, client.SubmitAnswerRequest{
			UserAnswer: []string{v},
			Status:     models.QuestionAnswered,
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("patches never delivered")
	}
	d.Close()
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var delivered atomic.Int32
	d := testDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		delivered.Add(1)
		json.NewEncoder(w).Encode(client.SubmitAnswerResponse{})
	}), 1)

	// First job occupies the worker, second fills the queue, the rest drop.
	for i := 0; i < 5; i++ {
		d.Enqueue("sess-1", "q1", client.SubmitAnswerRequest{Status: models.QuestionAnswered})
	}
	assert.LessOrEqual(t, d.QueueDepth(), 1)

	close(release)
	d.Close()
	assert.LessOrEqual(t, delivered.Load(), int32(2))
}

func TestDispatcherSwallowsBackendErrors(t *testing.T) {
	done := make(chan struct{})
	d := testDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
	}), 4)

	// Enqueue never reports the failure; it is logged and dropped.
	d.Enqueue("sess-1", "q1", client.SubmitAnswerRequest{Status: models.QuestionAnswered})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("patch never attempted")
	}
	d.Close()
	assert.Equal(t, 0, d.QueueDepth())
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	var delivered atomic.Int32
	d := testDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		delivered.Add(1)
		json.NewEncoder(w).Encode(client.SubmitAnswerResponse{})
	}), 8)

	for i := 0; i < 4; i++ {
		d.Enqueue("sess-1", "q1", client.SubmitAnswerRequest{Status: models.QuestionAnswered})
	}
	d.Close()
	assert.Equal(t, int32(4), delivered.Load())
}
