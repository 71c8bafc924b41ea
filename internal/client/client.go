// Package client is the authenticated REST client for the practice-session
// API. Every call fetches a bearer credential from the injected
// TokenProvider; no ambient auth state is consulted.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/satprep-labs/practice-session-service/internal/models"
)

// TokenProvider returns a bearer token for one outgoing call, or an error
// when no credential is available.
type TokenProvider func(ctx context.Context) (string, error)

var ErrNotAuthenticated = errors.New("not authenticated")

// APIError carries a non-2xx response back to the caller.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   TokenProvider
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, token TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ===== WIRE TYPES =====

type SessionQuestionsResponse struct {
	Session        models.PracticeSession   `json:"session"`
	Questions      []models.SessionQuestion `json:"questions"`
	TotalQuestions int                      `json:"total_questions"`
}

type SubmitAnswerRequest struct {
	UserAnswer       []string              `json:"user_answer"`
	Status           models.QuestionStatus `json:"status"`
	ConfidenceScore  *int                  `json:"confidence_score,omitempty"`
	TimeSpentSeconds *int                  `json:"time_spent_seconds,omitempty"`
}

type SubmitAnswerResponse struct {
	IsCorrect         bool     `json:"is_correct"`
	CorrectAnswer     []string `json:"correct_answer"`
	QuestionID        string   `json:"question_id"`
	SessionQuestionID string   `json:"session_question_id"`
}

type FeedbackResponse struct {
	SessionQuestionID string                   `json:"session_question_id"`
	QuestionID        string                   `json:"question_id"`
	Feedback          models.AIFeedbackContent `json:"feedback"`
	IsCached          bool                     `json:"is_cached"`
}

type SimilarQuestionResponse struct {
	Question          models.Question `json:"question"`
	Topic             models.Topic    `json:"topic"`
	DisplayOrder      int             `json:"display_order"`
	SessionQuestionID string          `json:"session_question_id"`
}

// ===== OPERATIONS =====

func (c *Client) SessionQuestions(ctx context.Context, sessionID string) (*SessionQuestionsResponse, error) {
	var out SessionQuestionsResponse
	path := fmt.Sprintf("/api/v1/practice-sessions/%s/questions", sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID string, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	var out SubmitAnswerResponse
	path := fmt.Sprintf("/api/v1/practice-sessions/%s/questions/%s", sessionID, questionID)
	if err := c.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) QuestionFeedback(ctx context.Context, sessionID, questionID string, regenerate bool) (*FeedbackResponse, error) {
	var out FeedbackResponse
	path := fmt.Sprintf("/api/v1/practice-sessions/%s/questions/%s/feedback", sessionID, questionID)
	if regenerate {
		path += "?regenerate=true"
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type addSimilarQuestionRequest struct {
	QuestionID string `json:"question_id"`
	TopicID    string `json:"topic_id"`
}

func (c *Client) AddSimilarQuestion(ctx context.Context, sessionID, questionID, topicID string) (*SimilarQuestionResponse, error) {
	var out SimilarQuestionResponse
	path := fmt.Sprintf("/api/v1/practice-sessions/%s/add-similar-question", sessionID)
	req := addSimilarQuestionRequest{QuestionID: questionID, TopicID: topicID}
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== TRANSPORT =====

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if token == "" {
		return ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return "request rejected"
}
