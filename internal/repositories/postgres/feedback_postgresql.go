package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/satprep-labs/practice-session-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FeedbackPostgreSQL struct {
	db *gorm.DB
}

func NewFeedbackPostgreSQL(db *gorm.DB) repositories.FeedbackRepository {
	return &FeedbackPostgreSQL{db: db}
}

func (f *FeedbackPostgreSQL) GetBySessionQuestion(ctx context.Context, sessionQuestionID, userID string) (*models.AIFeedback, error) {
	var feedback models.AIFeedback
	err := f.db.WithContext(ctx).
		First(&feedback, "session_question_id = ? AND user_id = ?", sessionQuestionID, userID).Error
	if err != nil {
		return nil, err
	}
	return &feedback, nil
}

// Upsert writes the feedback row, replacing any previous content for the
// same session question and user.
func (f *FeedbackPostgreSQL) Upsert(ctx context.Context, feedback *models.AIFeedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	err := f.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_question_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"feedback_content", "context_used", "updated_at"}),
	}).Create(feedback).Error
	if err != nil {
		return fmt.Errorf("failed to upsert feedback: %w", err)
	}
	return nil
}
