package session

import (
	"github.com/satprep-labs/practice-session-service/internal/models"
)

// AnswerState is the client-local record for one question: what the user
// submitted and what we decided about it. Writes through the controller
// always replace the whole record, never patch fields in place.
//
// Invariant: IsCorrect is non-nil if and only if Status is answered.
type AnswerState struct {
	// Values holds the raw submitted values, pre-normalization; for
	// multiple choice this is usually an option identifier.
	Values []string
	// OptionID preserves the selected option identifier across submission
	// so the UI can keep highlighting the chosen option.
	OptionID         string
	Status           models.QuestionStatus
	IsCorrect        *bool
	ConfidenceScore  int
	TimeSpentSeconds int
}

func boolPtr(b bool) *bool {
	return &b
}
