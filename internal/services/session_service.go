package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/satprep-labs/practice-session-service/internal/events"
	"github.com/satprep-labs/practice-session-service/internal/grader"
	"github.com/satprep-labs/practice-session-service/internal/llm"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/satprep-labs/practice-session-service/internal/repositories"
	"github.com/satprep-labs/practice-session-service/internal/validator"
	"gorm.io/datatypes"
)

type sessionService struct {
	repo      repositories.Repository
	generator llm.Generator
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewSessionService(
	repo repositories.Repository,
	generator llm.Generator,
	publisher events.EventPublisher,
	logger *slog.Logger,
	v *validator.Validator,
) SessionService {
	return &sessionService{
		repo:      repo,
		generator: generator,
		publisher: publisher,
		logger:    logger,
		validator: v,
	}
}

// ===== CORE SESSION OPERATIONS =====

func (s *sessionService) Create(ctx context.Context, req *CreateSessionRequest, userID string) (*SessionResponse, error) {
	s.logger.Info("Creating practice session",
		"user_id", userID,
		"session_type", req.SessionType,
		"question_count", len(req.QuestionIDs))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session := &models.PracticeSession{
		UserID:      userID,
		Status:      models.SessionInProgress,
		SessionType: req.SessionType,
	}
	if err := s.repo.Session().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	for i, questionID := range req.QuestionIDs {
		question, err := s.repo.Question().GetByID(ctx, questionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
			}
			return nil, fmt.Errorf("failed to load question: %w", err)
		}

		sq := &models.SessionQuestion{
			SessionID:    session.ID,
			QuestionID:   question.ID,
			TopicID:      question.TopicID,
			DisplayOrder: i + 1,
			Status:       models.QuestionNotStarted,
		}
		if err := s.repo.SessionQuestion().Create(ctx, sq); err != nil {
			return nil, fmt.Errorf("failed to attach question to session: %w", err)
		}
	}

	s.publishEvent(ctx, events.NewSessionEvent(events.EventSessionStarted, events.SessionStartedEvent{
		SessionID:     session.ID,
		UserID:        userID,
		SessionType:   req.SessionType,
		QuestionCount: len(req.QuestionIDs),
		StartedAt:     session.CreatedAt,
	}))

	return &SessionResponse{
		Session:        session,
		TotalQuestions: len(req.QuestionIDs),
	}, nil
}

// List returns the user's own sessions, newest first by default.
func (s *sessionService) List(ctx context.Context, userID string, filters repositories.SessionFilters) (*SessionListResponse, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	sessions, total, err := s.repo.Session().ListByUser(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return &SessionListResponse{
		Sessions: sessions,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}

func (s *sessionService) GetQuestions(ctx context.Context, sessionID, userID string) (*SessionQuestionsResponse, error) {
	session, err := s.getOwnedSession(ctx, sessionID, userID, "read")
	if err != nil {
		return nil, err
	}

	questions, err := s.repo.SessionQuestion().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session questions: %w", err)
	}

	return &SessionQuestionsResponse{
		Session:        session,
		Questions:      questions,
		TotalQuestions: len(questions),
	}, nil
}

// SubmitAnswer grades and persists one answer. Grading here is the same
// algorithm clients run locally, so both sides always agree on the verdict.
func (s *sessionService) SubmitAnswer(ctx context.Context, sessionID, questionID, userID string, req *SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.getOwnedSession(ctx, sessionID, userID, "submit answer")
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return nil, ErrSessionCompleted
	}

	sq, err := s.repo.SessionQuestion().GetBySessionAndQuestion(ctx, sessionID, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to load session question: %w", err)
	}

	isCorrect := grader.Grade(&sq.Question, req.UserAnswer)

	answerJSON, err := encodeAnswer(req.UserAnswer)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sq.UserAnswer = answerJSON
	sq.Status = req.Status
	sq.IsCorrect = &isCorrect
	sq.IsSaved = true
	if req.ConfidenceScore != nil {
		score := grader.NormalizeConfidence(*req.ConfidenceScore)
		sq.ConfidenceScore = &score
	}
	if req.TimeSpentSeconds != nil {
		sq.TimeSpentSeconds = req.TimeSpentSeconds
	}
	if req.Status == models.QuestionAnswered {
		sq.AnsweredAt = &now
	}

	if err := s.repo.SessionQuestion().Update(ctx, sq); err != nil {
		return nil, fmt.Errorf("failed to persist answer: %w", err)
	}

	if session.Status == models.SessionPending {
		session.Status = models.SessionInProgress
		if err := s.repo.Session().Update(ctx, session); err != nil {
			s.logger.Warn("failed to mark session in progress",
				"session_id", sessionID, "error", err)
		}
	}

	if req.Status == models.QuestionAnswered {
		s.publishEvent(ctx, events.NewSessionEvent(events.EventAnswerSubmitted, events.AnswerSubmittedEvent{
			SessionID:         sessionID,
			SessionQuestionID: sq.ID,
			QuestionID:        questionID,
			UserID:            userID,
			IsCorrect:         isCorrect,
			ConfidenceScore:   sq.ConfidenceScore,
			TimeSpentSeconds:  sq.TimeSpentSeconds,
			AnsweredAt:        now,
		}))
	}

	s.logger.Info("Answer submitted",
		"session_id", sessionID,
		"question_id", questionID,
		"is_correct", isCorrect)

	return &SubmitAnswerResponse{
		IsCorrect:         isCorrect,
		CorrectAnswer:     sq.Question.CorrectAnswers(),
		QuestionID:        questionID,
		SessionQuestionID: sq.ID,
	}, nil
}

// AddSimilarQuestion creates a follow-up question on the same topic and
// appends it after the session's last question. Generation falls back to
// picking an unused bank question when the model is unavailable.
func (s *sessionService) AddSimilarQuestion(ctx context.Context, sessionID, userID string, req *AddSimilarQuestionRequest) (*SimilarQuestionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.getOwnedSession(ctx, sessionID, userID, "add similar question")
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return nil, ErrSessionCompleted
	}

	source, err := s.repo.Question().GetByID(ctx, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to load source question: %w", err)
	}

	question, err := s.produceSimilarQuestion(ctx, sessionID, source)
	if err != nil {
		return nil, err
	}

	maxOrder, err := s.repo.SessionQuestion().MaxDisplayOrder(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to determine display order: %w", err)
	}

	sq := &models.SessionQuestion{
		SessionID:    sessionID,
		QuestionID:   question.ID,
		TopicID:      question.TopicID,
		DisplayOrder: maxOrder + 1,
		Status:       models.QuestionNotStarted,
	}
	if err := s.repo.SessionQuestion().Create(ctx, sq); err != nil {
		return nil, fmt.Errorf("failed to append question to session: %w", err)
	}

	s.publishEvent(ctx, events.NewSessionEvent(events.EventSimilarQuestionAdded, events.SimilarQuestionAddedEvent{
		SessionID:        sessionID,
		SourceQuestionID: req.QuestionID,
		NewQuestionID:    question.ID,
		TopicID:          question.TopicID,
		UserID:           userID,
	}))

	s.logger.Info("Similar question added",
		"session_id", sessionID,
		"source_question_id", req.QuestionID,
		"new_question_id", question.ID,
		"display_order", sq.DisplayOrder)

	return &SimilarQuestionResponse{
		Question:          question,
		Topic:             &question.Topic,
		DisplayOrder:      sq.DisplayOrder,
		SessionQuestionID: sq.ID,
	}, nil
}

func (s *sessionService) produceSimilarQuestion(ctx context.Context, sessionID string, source *models.Question) (*models.Question, error) {
	generated, genErr := s.generator.GenerateSimilarQuestion(ctx, llm.SimilarQuestionRequest{
		Source:    source,
		TopicName: source.Topic.Name,
	})
	if genErr == nil {
		if err := s.repo.Question().Create(ctx, generated); err != nil {
			return nil, fmt.Errorf("failed to store generated question: %w", err)
		}
		generated.Topic = source.Topic
		return generated, nil
	}

	s.logger.Warn("question generation failed, falling back to question bank",
		"session_id", sessionID,
		"topic_id", source.TopicID,
		"error", genErr)

	existing, err := s.repo.SessionQuestion().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session questions: %w", err)
	}
	exclude := make([]string, 0, len(existing))
	for _, sq := range existing {
		exclude = append(exclude, sq.QuestionID)
	}

	question, err := s.repo.Question().GetRandomByTopic(ctx, source.TopicID, exclude)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNoSimilarQuestion
		}
		return nil, fmt.Errorf("failed to pick similar question: %w", err)
	}
	return question, nil
}

func (s *sessionService) Complete(ctx context.Context, sessionID, userID string) (*SessionSummaryResponse, error) {
	session, err := s.getOwnedSession(ctx, sessionID, userID, "complete")
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return nil, ErrSessionCompleted
	}

	questions, err := s.repo.SessionQuestion().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrSessionEmpty
	}

	summary := &SessionSummaryResponse{
		SessionID:      sessionID,
		TotalQuestions: len(questions),
	}
	for _, sq := range questions {
		if sq.Status == models.QuestionAnswered {
			summary.AnsweredCount++
		}
		if sq.IsCorrect != nil && *sq.IsCorrect {
			summary.CorrectCount++
		}
		if sq.TimeSpentSeconds != nil {
			summary.TotalTimeSeconds += *sq.TimeSpentSeconds
		}
	}
	if summary.AnsweredCount > 0 {
		summary.Accuracy = float64(summary.CorrectCount) / float64(summary.AnsweredCount)
	}

	now := time.Now().UTC()
	session.Status = models.SessionCompleted
	session.CompletedAt = &now
	if err := s.repo.Session().Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	s.publishEvent(ctx, events.NewSessionEvent(events.EventSessionCompleted, events.SessionCompletedEvent{
		SessionID:        sessionID,
		UserID:           userID,
		TotalQuestions:   summary.TotalQuestions,
		CorrectAnswers:   summary.CorrectCount,
		CompletedAt:      now,
		TotalTimeSeconds: summary.TotalTimeSeconds,
	}))

	s.logger.Info("Practice session completed",
		"session_id", sessionID,
		"answered", summary.AnsweredCount,
		"correct", summary.CorrectCount)

	return summary, nil
}

// ===== HELPERS =====

func (s *sessionService) getOwnedSession(ctx context.Context, sessionID, userID, action string) (*models.PracticeSession, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "practice_session", action, "not owned by user")
	}
	return session, nil
}

// publishEvent logs publish failures instead of failing the request; the
// event stream is observational, not transactional.
func (s *sessionService) publishEvent(ctx context.Context, event *events.SessionEvent) {
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish event",
			"event_type", event.Type,
			"error", err)
	}
}

func encodeAnswer(values []string) (datatypes.JSON, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer: %w", err)
	}
	return datatypes.JSON(payload), nil
}
