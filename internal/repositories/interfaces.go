package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satprep-labs/practice-session-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type SessionFilters struct {
	Status    *models.SessionStatus `json:"status"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`    // "created_at", "completed_at"
	SortOrder string                `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY INTERFACES =====

type SessionRepository interface {
	Create(ctx context.Context, session *models.PracticeSession) error
	GetByID(ctx context.Context, id string) (*models.PracticeSession, error)
	Update(ctx context.Context, session *models.PracticeSession) error
	ListByUser(ctx context.Context, userID string, filters SessionFilters) ([]*models.PracticeSession, int64, error)
}

type SessionQuestionRepository interface {
	Create(ctx context.Context, sq *models.SessionQuestion) error
	GetBySessionAndQuestion(ctx context.Context, sessionID, questionID string) (*models.SessionQuestion, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.SessionQuestion, error)
	Update(ctx context.Context, sq *models.SessionQuestion) error
	MaxDisplayOrder(ctx context.Context, sessionID string) (int, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id string) (*models.Question, error)
	GetRandomByTopic(ctx context.Context, topicID string, excludeIDs []string) (*models.Question, error)
}

type FeedbackRepository interface {
	GetBySessionQuestion(ctx context.Context, sessionQuestionID, userID string) (*models.AIFeedback, error)
	Upsert(ctx context.Context, feedback *models.AIFeedback) error
}

// Repository aggregates all repositories behind one dependency.
type Repository interface {
	Session() SessionRepository
	SessionQuestion() SessionQuestionRepository
	Question() QuestionRepository
	Feedback() FeedbackRepository
}

// IsNotFoundError reports whether the error means the row does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
