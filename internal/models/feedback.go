package models

import (
	"time"

	"gorm.io/datatypes"
)

// AIFeedbackContent is the generated explanation payload returned to the
// client and cached per session question.
type AIFeedbackContent struct {
	Explanation   string   `json:"explanation"`
	ConceptReview string   `json:"concept_review,omitempty"`
	Tips          []string `json:"tips,omitempty"`
}

// AIFeedback is the persisted cache row for generated feedback.
type AIFeedback struct {
	ID                string `json:"id" gorm:"primaryKey;size:36"`
	SessionQuestionID string `json:"session_question_id" gorm:"size:36;not null;uniqueIndex:idx_feedback_sq_user"`
	UserID            string `json:"user_id" gorm:"size:255;not null;uniqueIndex:idx_feedback_sq_user"`

	FeedbackContent datatypes.JSON `json:"feedback_content" gorm:"type:jsonb;not null"`
	ContextUsed     datatypes.JSON `json:"context_used,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AIFeedback) TableName() string {
	return "ai_feedback"
}
