package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/satprep-labs/practice-session-service/internal/repositories"
	"gorm.io/gorm"
)

type SessionQuestionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionQuestionPostgreSQL(db *gorm.DB) repositories.SessionQuestionRepository {
	return &SessionQuestionPostgreSQL{db: db}
}

func (s *SessionQuestionPostgreSQL) Create(ctx context.Context, sq *models.SessionQuestion) error {
	if sq.ID == "" {
		sq.ID = uuid.NewString()
	}
	if sq.Status == "" {
		sq.Status = models.QuestionNotStarted
	}
	if err := s.db.WithContext(ctx).Create(sq).Error; err != nil {
		return fmt.Errorf("failed to create session question: %w", err)
	}
	return nil
}

func (s *SessionQuestionPostgreSQL) GetBySessionAndQuestion(ctx context.Context, sessionID, questionID string) (*models.SessionQuestion, error) {
	var sq models.SessionQuestion
	err := s.db.WithContext(ctx).
		Preload("Question").
		Preload("Topic").
		First(&sq, "session_id = ? AND question_id = ?", sessionID, questionID).Error
	if err != nil {
		return nil, err
	}
	return &sq, nil
}

// ListBySession returns the session's questions in display order with
// question and topic details preloaded.
func (s *SessionQuestionPostgreSQL) ListBySession(ctx context.Context, sessionID string) ([]*models.SessionQuestion, error) {
	var questions []*models.SessionQuestion
	err := s.db.WithContext(ctx).
		Preload("Question").
		Preload("Topic").
		Where("session_id = ?", sessionID).
		Order("display_order ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list session questions: %w", err)
	}
	return questions, nil
}

func (s *SessionQuestionPostgreSQL) Update(ctx context.Context, sq *models.SessionQuestion) error {
	if err := s.db.WithContext(ctx).Save(sq).Error; err != nil {
		return fmt.Errorf("failed to update session question: %w", err)
	}
	return nil
}

func (s *SessionQuestionPostgreSQL) MaxDisplayOrder(ctx context.Context, sessionID string) (int, error) {
	var max *int
	err := s.db.WithContext(ctx).
		Model(&models.SessionQuestion{}).
		Where("session_id = ?", sessionID).
		Select("MAX(display_order)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get max display order: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
