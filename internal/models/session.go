package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

type QuestionStatus string

const (
	QuestionNotStarted QuestionStatus = "not_started"
	QuestionInProgress QuestionStatus = "in_progress"
	QuestionAnswered   QuestionStatus = "answered"
)

type PracticeSession struct {
	ID          string        `json:"id" gorm:"primaryKey;size:36"`
	UserID      string        `json:"user_id" gorm:"size:255;not null;index"`
	Status      SessionStatus `json:"status" gorm:"default:pending;index"`
	SessionType string        `json:"session_type" gorm:"size:50"`

	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (PracticeSession) TableName() string {
	return "practice_sessions"
}

// SessionQuestion binds a question to one practice session with
// session-scoped status, ordering and answer tracking.
type SessionQuestion struct {
	ID           string         `json:"session_question_id" gorm:"primaryKey;size:36"`
	SessionID    string         `json:"session_id" gorm:"size:36;not null;index:idx_session_order"`
	QuestionID   string         `json:"question_id" gorm:"size:36;not null;index"`
	TopicID      string         `json:"topic_id" gorm:"size:36;not null"`
	DisplayOrder int            `json:"display_order" gorm:"not null;index:idx_session_order"`
	Status       QuestionStatus `json:"status" gorm:"default:not_started"`

	// UserAnswer holds []string: the raw submitted values, which may be
	// option identifiers or labels for multiple choice.
	UserAnswer       datatypes.JSON `json:"user_answer,omitempty" gorm:"type:jsonb"`
	IsCorrect        *bool          `json:"is_correct,omitempty"`
	ConfidenceScore  *int           `json:"confidence_score,omitempty" validate:"omitempty,min=1,max=5"`
	TimeSpentSeconds *int           `json:"time_spent_seconds,omitempty"`
	IsSaved          bool           `json:"is_saved" gorm:"default:false"`
	AnsweredAt       *time.Time     `json:"answered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
	Topic    Topic    `json:"topic" gorm:"foreignKey:TopicID"`
}

func (SessionQuestion) TableName() string {
	return "session_questions"
}

// UserAnswers decodes the persisted answer values, nil when unanswered.
func (sq *SessionQuestion) UserAnswers() []string {
	if len(sq.UserAnswer) == 0 {
		return nil
	}
	var arr []string
	if err := json.Unmarshal(sq.UserAnswer, &arr); err != nil {
		return nil
	}
	return arr
}
