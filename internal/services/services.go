package services

import (
	"context"
	"log/slog"

	"github.com/satprep-labs/practice-session-service/internal/cache"
	"github.com/satprep-labs/practice-session-service/internal/events"
	"github.com/satprep-labs/practice-session-service/internal/llm"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/satprep-labs/practice-session-service/internal/repositories"
	"github.com/satprep-labs/practice-session-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

// ===== REQUEST / RESPONSE TYPES =====

type CreateSessionRequest struct {
	SessionType string   `json:"session_type" validate:"required,oneof=practice review timed"`
	QuestionIDs []string `json:"question_ids" validate:"required,min=1,dive,uuid"`
}

type SessionResponse struct {
	Session        *models.PracticeSession `json:"session"`
	TotalQuestions int                     `json:"total_questions"`
}

type SessionListResponse struct {
	Sessions []*models.PracticeSession `json:"sessions"`
	Total    int64                     `json:"total"`
	Limit    int                       `json:"limit"`
	Offset   int                       `json:"offset"`
}

type SessionQuestionsResponse struct {
	Session        *models.PracticeSession  `json:"session"`
	Questions      []*models.SessionQuestion `json:"questions"`
	TotalQuestions int                      `json:"total_questions"`
}

type SubmitAnswerRequest struct {
	UserAnswer       []string              `json:"user_answer" validate:"required,min=1"`
	Status           models.QuestionStatus `json:"status" validate:"required,question_status"`
	ConfidenceScore  *int                  `json:"confidence_score" validate:"omitempty,confidence_score"`
	TimeSpentSeconds *int                  `json:"time_spent_seconds" validate:"omitempty,min=0"`
}

type SubmitAnswerResponse struct {
	IsCorrect         bool     `json:"is_correct"`
	CorrectAnswer     []string `json:"correct_answer"`
	QuestionID        string   `json:"question_id"`
	SessionQuestionID string   `json:"session_question_id"`
}

type AddSimilarQuestionRequest struct {
	QuestionID string `json:"question_id" validate:"required,uuid"`
	TopicID    string `json:"topic_id" validate:"required,uuid"`
}

type SimilarQuestionResponse struct {
	Question          *models.Question `json:"question"`
	Topic             *models.Topic    `json:"topic"`
	DisplayOrder      int              `json:"display_order"`
	SessionQuestionID string           `json:"session_question_id"`
}

type FeedbackResponse struct {
	SessionQuestionID string                    `json:"session_question_id"`
	QuestionID        string                    `json:"question_id"`
	Feedback          *models.AIFeedbackContent `json:"feedback"`
	IsCached          bool                      `json:"is_cached"`
}

type SessionSummaryResponse struct {
	SessionID        string  `json:"session_id"`
	TotalQuestions   int     `json:"total_questions"`
	AnsweredCount    int     `json:"answered_count"`
	CorrectCount     int     `json:"correct_count"`
	Accuracy         float64 `json:"accuracy"`
	TotalTimeSeconds int     `json:"total_time_seconds"`
}

// ===== SERVICE INTERFACES =====

type SessionService interface {
	Create(ctx context.Context, req *CreateSessionRequest, userID string) (*SessionResponse, error)
	List(ctx context.Context, userID string, filters repositories.SessionFilters) (*SessionListResponse, error)
	GetQuestions(ctx context.Context, sessionID, userID string) (*SessionQuestionsResponse, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID, userID string, req *SubmitAnswerRequest) (*SubmitAnswerResponse, error)
	AddSimilarQuestion(ctx context.Context, sessionID, userID string, req *AddSimilarQuestionRequest) (*SimilarQuestionResponse, error)
	Complete(ctx context.Context, sessionID, userID string) (*SessionSummaryResponse, error)
}

type FeedbackService interface {
	GetFeedback(ctx context.Context, sessionID, questionID, userID string, regenerate bool) (*FeedbackResponse, error)
}

type ExportService interface {
	ExportSessionResults(ctx context.Context, sessionID, userID string) (*excelize.File, error)
}

// ServiceManager wires all services behind one dependency for the handlers.
type ServiceManager interface {
	Session() SessionService
	Feedback() FeedbackService
	Export() ExportService
}

type serviceManager struct {
	session  SessionService
	feedback FeedbackService
	export   ExportService
}

func NewServiceManager(
	repo repositories.Repository,
	cacheService cache.CacheService,
	generator llm.Generator,
	publisher events.EventPublisher,
	logger *slog.Logger,
	v *validator.Validator,
) ServiceManager {
	return &serviceManager{
		session:  NewSessionService(repo, generator, publisher, logger, v),
		feedback: NewFeedbackService(repo, cacheService, generator, logger),
		export:   NewExportService(repo, logger),
	}
}

func (m *serviceManager) Session() SessionService   { return m.session }
func (m *serviceManager) Feedback() FeedbackService { return m.feedback }
func (m *serviceManager) Export() ExportService     { return m.export }
