package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/satprep-labs/practice-session-service/internal/cache"
	"github.com/satprep-labs/practice-session-service/internal/llm"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/satprep-labs/practice-session-service/internal/repositories"
)

// feedbackCacheTTL bounds how long generated feedback lives in redis; the
// database row is the durable copy.
const feedbackCacheTTL = 24 * time.Hour

type feedbackService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	generator llm.Generator
	logger    *slog.Logger
}

func NewFeedbackService(
	repo repositories.Repository,
	cacheService cache.CacheService,
	generator llm.Generator,
	logger *slog.Logger,
) FeedbackService {
	return &feedbackService{
		repo:      repo,
		cache:     cacheService,
		generator: generator,
		logger:    logger,
	}
}

// GetFeedback returns AI feedback for one answered question. Lookup order:
// redis, database, fresh generation. Regenerate skips both caches and
// overwrites them.
func (s *feedbackService) GetFeedback(ctx context.Context, sessionID, questionID, userID string, regenerate bool) (*FeedbackResponse, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "practice_session", "get feedback", "not owned by user")
	}

	sq, err := s.repo.SessionQuestion().GetBySessionAndQuestion(ctx, sessionID, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to load session question: %w", err)
	}
	if sq.Status != models.QuestionAnswered {
		return nil, ErrFeedbackNotAvailable
	}

	cacheKey := feedbackCacheKey(sq.ID, userID)

	if !regenerate {
		var cached models.AIFeedbackContent
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return s.response(sq, &cached, true), nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("feedback cache read failed", "key", cacheKey, "error", err)
		}

		if stored, err := s.repo.Feedback().GetBySessionQuestion(ctx, sq.ID, userID); err == nil {
			var content models.AIFeedbackContent
			if err := json.Unmarshal(stored.FeedbackContent, &content); err == nil {
				s.warmCache(ctx, cacheKey, &content)
				return s.response(sq, &content, true), nil
			}
			s.logger.Warn("stored feedback is unreadable, regenerating",
				"session_question_id", sq.ID, "error", err)
		} else if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to load stored feedback: %w", err)
		}
	}

	content, err := s.generator.GenerateFeedback(ctx, llm.FeedbackRequest{
		Question:    &sq.Question,
		UserAnswer:  sq.UserAnswers(),
		IsCorrect:   sq.IsCorrect,
		TopicName:   sq.Topic.Name,
		SessionType: session.SessionType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedbackGeneration, err)
	}

	if err := s.persist(ctx, sq, userID, content); err != nil {
		// Feedback is still usable; losing the cache row only costs a
		// regeneration next time.
		s.logger.Warn("failed to persist feedback",
			"session_question_id", sq.ID, "error", err)
	}
	s.warmCache(ctx, cacheKey, content)

	return s.response(sq, content, false), nil
}

func (s *feedbackService) response(sq *models.SessionQuestion, content *models.AIFeedbackContent, cached bool) *FeedbackResponse {
	return &FeedbackResponse{
		SessionQuestionID: sq.ID,
		QuestionID:        sq.QuestionID,
		Feedback:          content,
		IsCached:          cached,
	}
}

func (s *feedbackService) persist(ctx context.Context, sq *models.SessionQuestion, userID string, content *models.AIFeedbackContent) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}
	contextUsed, err := json.Marshal(map[string]interface{}{
		"question_id": sq.QuestionID,
		"user_answer": sq.UserAnswers(),
		"is_correct":  sq.IsCorrect,
	})
	if err != nil {
		return fmt.Errorf("failed to encode feedback context: %w", err)
	}

	return s.repo.Feedback().Upsert(ctx, &models.AIFeedback{
		SessionQuestionID: sq.ID,
		UserID:            userID,
		FeedbackContent:   payload,
		ContextUsed:       contextUsed,
	})
}

func (s *feedbackService) warmCache(ctx context.Context, key string, content *models.AIFeedbackContent) {
	if err := s.cache.Set(ctx, key, content, feedbackCacheTTL); err != nil {
		s.logger.Warn("feedback cache write failed", "key", key, "error", err)
	}
}

func feedbackCacheKey(sessionQuestionID, userID string) string {
	return fmt.Sprintf("feedback:%s:%s", sessionQuestionID, userID)
}
