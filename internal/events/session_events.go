package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of practice-session events
type EventType string

const (
	// Session events
	EventSessionStarted   EventType = "session.started"
	EventSessionCompleted EventType = "session.completed"

	// Answer events
	EventAnswerSubmitted EventType = "answer.submitted"

	// Question events
	EventSimilarQuestionAdded EventType = "question.similar_added"
)

// EventSource identifies this service on the bus.
const EventSource = "practice-session-service"

// SessionEvent is the envelope for all published events
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewSessionEvent wraps a payload in the standard envelope.
func NewSessionEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    EventSource,
		Version:   "1.0",
		Data:      data,
	}
}

// ===== EVENT PAYLOADS =====

type SessionStartedEvent struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	SessionType   string    `json:"session_type"`
	QuestionCount int       `json:"question_count"`
	StartedAt     time.Time `json:"started_at"`
}

type AnswerSubmittedEvent struct {
	SessionID        string    `json:"session_id"`
	SessionQuestionID string   `json:"session_question_id"`
	QuestionID       string    `json:"question_id"`
	UserID           string    `json:"user_id"`
	IsCorrect        bool      `json:"is_correct"`
	ConfidenceScore  *int      `json:"confidence_score,omitempty"`
	TimeSpentSeconds *int      `json:"time_spent_seconds,omitempty"`
	AnsweredAt       time.Time `json:"answered_at"`
}

type SessionCompletedEvent struct {
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	TotalQuestions   int       `json:"total_questions"`
	CorrectAnswers   int       `json:"correct_answers"`
	CompletedAt      time.Time `json:"completed_at"`
	TotalTimeSeconds int       `json:"total_time_seconds"`
}

type SimilarQuestionAddedEvent struct {
	SessionID        string `json:"session_id"`
	SourceQuestionID string `json:"source_question_id"`
	NewQuestionID    string `json:"new_question_id"`
	TopicID          string `json:"topic_id"`
	UserID           string `json:"user_id"`
}
