package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionMultipleChoice  QuestionType = "multiple_choice"
	QuestionStudentResponse QuestionType = "student_produced_response"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// AnswerOption is one selectable choice of a multiple-choice question.
// Label is optional; when empty the option's position determines its
// letter (A-F).
type AnswerOption struct {
	ID      string `json:"id"`
	Label   string `json:"label,omitempty"`
	Content string `json:"content"`
}

type Topic struct {
	ID               string  `json:"id" gorm:"primaryKey;size:36"`
	Name             string  `json:"name" gorm:"not null;size:200"`
	CategoryID       *string `json:"category_id" gorm:"size:36;index"`
	WeightInCategory float64 `json:"weight_in_category"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Topic) TableName() string {
	return "topics"
}

type Question struct {
	ID         string          `json:"id" gorm:"primaryKey;size:36"`
	Stem       string          `json:"stem" gorm:"type:text;not null" validate:"required"`
	Stimulus   *string         `json:"stimulus,omitempty" gorm:"type:text"`
	Type       QuestionType    `json:"question_type" gorm:"column:question_type;not null;index" validate:"required,oneof=multiple_choice student_produced_response"`
	Difficulty DifficultyLevel `json:"difficulty" gorm:"not null;index" validate:"omitempty,oneof=easy medium hard"`

	// AnswerOptions holds []AnswerOption for multiple choice, null otherwise.
	// CorrectAnswer holds the accepted values: option labels for multiple
	// choice, literal strings for student-produced responses. The backend
	// may store a bare string instead of an array; CorrectAnswers handles
	// both.
	AnswerOptions datatypes.JSON `json:"answer_options,omitempty" gorm:"type:jsonb"`
	CorrectAnswer datatypes.JSON `json:"correct_answer" gorm:"type:jsonb"`

	Rationale *string `json:"rationale,omitempty" gorm:"type:text"`
	TopicID   string  `json:"topic_id" gorm:"size:36;not null;index"`
	IsActive  bool    `json:"is_active" gorm:"default:true"`
	IsFlagged bool    `json:"is_flagged" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Topic Topic `json:"-" gorm:"foreignKey:TopicID"`
}

func (Question) TableName() string {
	return "questions"
}

// Options decodes the answer options. Returns nil for questions without
// options (student-produced responses).
func (q *Question) Options() ([]AnswerOption, error) {
	if len(q.AnswerOptions) == 0 {
		return nil, nil
	}
	var opts []AnswerOption
	if err := json.Unmarshal(q.AnswerOptions, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// CorrectAnswers returns the canonical correct-answer set, normalized to a
// slice even when the stored value is a single scalar.
func (q *Question) CorrectAnswers() []string {
	if len(q.CorrectAnswer) == 0 {
		return nil
	}
	var arr []string
	if err := json.Unmarshal(q.CorrectAnswer, &arr); err == nil {
		return arr
	}
	var scalar string
	if err := json.Unmarshal(q.CorrectAnswer, &scalar); err == nil {
		return []string{scalar}
	}
	return nil
}
