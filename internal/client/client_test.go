package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(tok string) TokenProvider {
	return func(ctx context.Context) (string, error) { return tok, nil }
}

func TestSessionQuestionsSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc123", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/practice-sessions/sess-1/questions", r.URL.Path)
		json.NewEncoder(w).Encode(SessionQuestionsResponse{
			Session:        models.PracticeSession{ID: "sess-1"},
			TotalQuestions: 0,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken("abc123"))
	resp, err := c.SessionQuestions(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", resp.Session.ID)
}

func TestMissingTokenShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent without a credential")
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken(""))
	_, err := c.SessionQuestions(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestTokenProviderErrorShortCircuits(t *testing.T) {
	c := New("http://unused", func(ctx context.Context) (string, error) {
		return "", errors.New("session expired")
	})
	_, err := c.SessionQuestions(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Contains(t, err.Error(), "session expired")
}

func TestSubmitAnswerPatchesQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/practice-sessions/sess-1/questions/q1", r.URL.Path)

		var req SubmitAnswerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"B"}, req.UserAnswer)
		assert.Equal(t, models.QuestionAnswered, req.Status)

		json.NewEncoder(w).Encode(SubmitAnswerResponse{QuestionID: "q1", IsCorrect: true})
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken("abc123"))
	resp, err := c.SubmitAnswer(context.Background(), "sess-1", "q1", SubmitAnswerRequest{
		UserAnswer: []string{"B"},
		Status:     models.QuestionAnswered,
	})
	require.NoError(t, err)
	assert.True(t, resp.IsCorrect)
}

func TestQuestionFeedbackRegenerateFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("regenerate"))
		json.NewEncoder(w).Encode(FeedbackResponse{QuestionID: "q1"})
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken("abc123"))
	_, err := c.QuestionFeedback(context.Background(), "sess-1", "q1", true)
	require.NoError(t, err)
}

func TestAPIErrorCarriesStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "not your session"})
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken("abc123"))
	_, err := c.SessionQuestions(context.Background(), "sess-1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "not your session", apiErr.Message)
}

func TestAPIErrorFastAPIDetailField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Practice session not found"})
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken("abc123"))
	_, err := c.SessionQuestions(context.Background(), "missing")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Practice session not found", apiErr.Message)
}
