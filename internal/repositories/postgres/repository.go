// Package postgres provides GORM-backed implementations of the repository
// interfaces.
package postgres

import (
	"github.com/satprep-labs/practice-session-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	session         repositories.SessionRepository
	sessionQuestion repositories.SessionQuestionRepository
	question        repositories.QuestionRepository
	feedback        repositories.FeedbackRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		session:         NewSessionPostgreSQL(db),
		sessionQuestion: NewSessionQuestionPostgreSQL(db),
		question:        NewQuestionPostgreSQL(db),
		feedback:        NewFeedbackPostgreSQL(db),
	}
}

func (r *repository) Session() repositories.SessionRepository {
	return r.session
}

func (r *repository) SessionQuestion() repositories.SessionQuestionRepository {
	return r.sessionQuestion
}

func (r *repository) Question() repositories.QuestionRepository {
	return r.question
}

func (r *repository) Feedback() repositories.FeedbackRepository {
	return r.feedback
}
