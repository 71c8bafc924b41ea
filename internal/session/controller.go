// Package session implements the practice-session answer controller: it
// loads a session's question list, grades submissions locally for instant
// feedback, and mirrors answers to the backend in the background.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/satprep-labs/practice-session-service/internal/client"
	"github.com/satprep-labs/practice-session-service/internal/grader"
	"github.com/satprep-labs/practice-session-service/internal/models"
)

// Controller owns all mutable session state: the ordered question list, the
// per-question answer map and the feedback cache. State is mutated only
// through its methods; reads hand out copies.
//
// Local grading is authoritative for the remainder of the session. The
// background PATCH is best-effort and its result is never read back.
type Controller struct {
	sessionID  string
	api        *client.Client
	logger     *slog.Logger
	dispatcher *Dispatcher
	now        func() time.Time

	mu            sync.RWMutex
	questions     []models.SessionQuestion
	answers       map[string]AnswerState
	feedback      map[string]*models.AIFeedbackContent
	questionStart time.Time
}

type Option func(*Controller)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithQueueDepth bounds the background sync queue.
func WithQueueDepth(depth int) Option {
	return func(c *Controller) {
		c.dispatcher = NewDispatcher(c.api, c.logger, depth)
	}
}

func NewController(sessionID string, api *client.Client, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		sessionID: sessionID,
		api:       api,
		logger:    logger,
		now:       time.Now,
		answers:   make(map[string]AnswerState),
		feedback:  make(map[string]*models.AIFeedbackContent),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatcher == nil {
		c.dispatcher = NewDispatcher(api, logger, defaultQueueDepth)
	}
	c.questionStart = c.now()
	return c
}

// Close drains the background sync queue. Call when the session ends.
func (c *Controller) Close() {
	c.dispatcher.Close()
}

// ===== SESSION LOADING =====

// Load fetches the session's questions, rebuilds answer state from any
// previously persisted answers, and returns the zero-based index of the
// first unanswered question (0 when every question is already answered).
func (c *Controller) Load(ctx context.Context) (int, error) {
	resp, err := c.api.SessionQuestions(ctx, c.sessionID)
	if err != nil {
		c.logger.Error("failed to load session", "session_id", c.sessionID, "error", err)
		return 0, fmt.Errorf("failed to load session: %w", err)
	}

	questions := append([]models.SessionQuestion(nil), resp.Questions...)
	// Stable: ties keep their server-reported relative order.
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].DisplayOrder < questions[j].DisplayOrder
	})

	answers := make(map[string]AnswerState, len(questions))
	for _, q := range questions {
		if q.Status == models.QuestionNotStarted {
			continue
		}
		answers[q.QuestionID] = rehydrateAnswer(q)
	}

	resume := 0
	for i, q := range questions {
		if q.Status == models.QuestionNotStarted {
			resume = i
			break
		}
	}

	c.mu.Lock()
	c.questions = questions
	c.answers = answers
	c.questionStart = c.now()
	c.mu.Unlock()

	c.logger.Info("session loaded",
		"session_id", c.sessionID,
		"questions", len(questions),
		"resume_index", resume)
	return resume, nil
}

// rehydrateAnswer reconstructs local state from a persisted session
// question. Correctness is back-derived by regrading the stored answer, so
// a reloaded session reaches the same verdict as the original submission.
func rehydrateAnswer(q models.SessionQuestion) AnswerState {
	state := AnswerState{
		Values: q.UserAnswers(),
		Status: q.Status,
	}
	if q.ConfidenceScore != nil {
		state.ConfidenceScore = *q.ConfidenceScore
	}
	if q.TimeSpentSeconds != nil {
		state.TimeSpentSeconds = *q.TimeSpentSeconds
	}
	if q.Status == models.QuestionAnswered && len(state.Values) > 0 {
		state.IsCorrect = boolPtr(grader.Grade(&q.Question, state.Values))
	}
	return state
}

// ===== READ ACCESS =====

// Questions returns a copy of the ordered question list.
func (c *Controller) Questions() []models.SessionQuestion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.SessionQuestion(nil), c.questions...)
}

// Answer returns the current state for a question, if any.
func (c *Controller) Answer(questionID string) (AnswerState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.answers[questionID]
	return state, ok
}

// ===== ANSWER STATE WRITES =====

// HandleAnswerChange records an in-progress selection. Repeated calls
// replace the stored value; only the latest survives. Any prior correctness
// verdict is cleared.
func (c *Controller) HandleAnswerChange(questionID, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[questionID] = AnswerState{
		Values:   []string{value},
		OptionID: value,
		Status:   models.QuestionInProgress,
	}
}

// HandleSubmit finalizes a question: grades locally, writes the terminal
// answered record, and enqueues the backend patch without waiting for it.
// Returns the correctness verdict immediately.
func (c *Controller) HandleSubmit(questionID string, userAnswer []string, confidence, timeSpentSeconds int) (bool, error) {
	c.mu.Lock()

	question, ok := c.findQuestion(questionID)
	if !ok {
		c.mu.Unlock()
		return false, fmt.Errorf("question %s not found in session", questionID)
	}

	isCorrect := grader.Grade(&question.Question, userAnswer)
	confidence = grader.NormalizeConfidence(confidence)

	// Keep the raw option id selected via HandleAnswerChange so the UI can
	// still match the highlighted option after submission.
	values := userAnswer
	optionID := ""
	if prev, ok := c.answers[questionID]; ok && prev.OptionID != "" {
		values = []string{prev.OptionID}
		optionID = prev.OptionID
	}

	c.answers[questionID] = AnswerState{
		Values:           values,
		OptionID:         optionID,
		Status:           models.QuestionAnswered,
		IsCorrect:        boolPtr(isCorrect),
		ConfidenceScore:  confidence,
		TimeSpentSeconds: timeSpentSeconds,
	}
	c.mu.Unlock()

	c.dispatcher.Enqueue(c.sessionID, questionID, client.SubmitAnswerRequest{
		UserAnswer:       userAnswer,
		Status:           models.QuestionAnswered,
		ConfidenceScore:  &confidence,
		TimeSpentSeconds: &timeSpentSeconds,
	})

	return isCorrect, nil
}

// findQuestion must be called with c.mu held.
func (c *Controller) findQuestion(questionID string) (*models.SessionQuestion, bool) {
	for i := range c.questions {
		if c.questions[i].QuestionID == questionID {
			return &c.questions[i], true
		}
	}
	return nil, false
}

// ===== FEEDBACK =====

// HandleGetFeedback fetches AI feedback for a question, consulting the
// per-question cache first. Foreground action: errors propagate.
func (c *Controller) HandleGetFeedback(ctx context.Context, questionID string) (*models.AIFeedbackContent, error) {
	c.mu.RLock()
	cached, ok := c.feedback[questionID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resp, err := c.api.QuestionFeedback(ctx, c.sessionID, questionID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}

	c.mu.Lock()
	c.feedback[questionID] = &resp.Feedback
	c.mu.Unlock()
	return &resp.Feedback, nil
}

// Feedback returns the cached feedback for a question, if present.
func (c *Controller) Feedback(questionID string) (*models.AIFeedbackContent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fb, ok := c.feedback[questionID]
	return fb, ok
}

// ClearFeedback drops the cached feedback for one question.
func (c *Controller) ClearFeedback(questionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.feedback, questionID)
}

// ===== QUESTION LIST MUTATION =====

// HandleAddSimilarQuestion requests a follow-up question on the same topic
// and appends it to the end of the list with not_started status. Returns
// the new entry and its index. Foreground action: errors propagate.
func (c *Controller) HandleAddSimilarQuestion(ctx context.Context, questionID, topicID string) (*models.SessionQuestion, int, error) {
	resp, err := c.api.AddSimilarQuestion(ctx, c.sessionID, questionID, topicID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to add similar question: %w", err)
	}

	sq := models.SessionQuestion{
		ID:           resp.SessionQuestionID,
		SessionID:    c.sessionID,
		QuestionID:   resp.Question.ID,
		TopicID:      resp.Topic.ID,
		DisplayOrder: resp.DisplayOrder,
		Status:       models.QuestionNotStarted,
		Question:     resp.Question,
		Topic:        resp.Topic,
	}

	c.mu.Lock()
	c.questions = append(c.questions, sq)
	index := len(c.questions) - 1
	c.mu.Unlock()

	c.logger.Info("similar question appended",
		"session_id", c.sessionID,
		"source_question_id", questionID,
		"display_order", sq.DisplayOrder)
	return &sq, index, nil
}

// UpdateQuestionFlag toggles the flagged marker on a question in place.
func (c *Controller) UpdateQuestionFlag(questionID string, flagged bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.questions {
		if c.questions[i].QuestionID == questionID {
			c.questions[i].Question.IsFlagged = flagged
			return
		}
	}
}

// ===== TIMING =====

// ResetQuestionTimer marks the start of work on the current question.
func (c *Controller) ResetQuestionTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.questionStart = c.now()
}

// TimeSpent reports whole seconds elapsed since the last timer reset.
func (c *Controller) TimeSpent() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int(c.now().Sub(c.questionStart).Seconds())
}

// SyncQueueDepth exposes the number of pending background patches.
func (c *Controller) SyncQueueDepth() int {
	return c.dispatcher.QueueDepth()
}
