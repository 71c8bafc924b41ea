package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/satprep-labs/practice-session-service/internal/repositories"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	if err := q.db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	err := q.db.WithContext(ctx).
		Preload("Topic").
		First(&question, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// GetRandomByTopic picks one active question from the topic, skipping the
// given ids so a session never sees the same question twice.
func (q *QuestionPostgreSQL) GetRandomByTopic(ctx context.Context, topicID string, excludeIDs []string) (*models.Question, error) {
	query := q.db.WithContext(ctx).
		Preload("Topic").
		Where("topic_id = ? AND is_active = ?", topicID, true)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}

	var question models.Question
	err := query.Order("RANDOM()").First(&question).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}
