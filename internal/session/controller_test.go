package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/satprep-labs/practice-session-service/internal/client"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// fakeBackend is a minimal in-memory practice-session API.
type fakeBackend struct {
	mu        sync.Mutex
	questions []models.SessionQuestion
	patches   []client.SubmitAnswerRequest
	patched   chan string // question ids, in arrival order

	feedbackCalls int
	nextOrder     int
}

func newFakeBackend(questions []models.SessionQuestion) *fakeBackend {
	maxOrder := 0
	for _, q := range questions {
		if q.DisplayOrder > maxOrder {
			maxOrder = q.DisplayOrder
		}
	}
	return &fakeBackend{
		questions: questions,
		patched:   make(chan string, 16),
		nextOrder: maxOrder + 1,
	}
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/practice-sessions/{id}/questions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		resp := client.SessionQuestionsResponse{
			Session:        models.PracticeSession{ID: r.PathValue("id"), Status: models.SessionInProgress},
			Questions:      b.questions,
			TotalQuestions: len(b.questions),
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("PATCH /api/v1/practice-sessions/{id}/questions/{qid}", func(w http.ResponseWriter, r *http.Request) {
		var req client.SubmitAnswerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.mu.Lock()
		b.patches = append(b.patches, req)
		b.mu.Unlock()
		b.patched <- r.PathValue("qid")
		json.NewEncoder(w).Encode(client.SubmitAnswerResponse{QuestionID: r.PathValue("qid")})
	})

	mux.HandleFunc("GET /api/v1/practice-sessions/{id}/questions/{qid}/feedback", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.feedbackCalls++
		calls := b.feedbackCalls
		b.mu.Unlock()
		json.NewEncoder(w).Encode(client.FeedbackResponse{
			QuestionID: r.PathValue("qid"),
			Feedback: models.AIFeedbackContent{
				Explanation: fmt.Sprintf("explanation %d for %s", calls, r.PathValue("qid")),
			},
		})
	})

	mux.HandleFunc("POST /api/v1/practice-sessions/{id}/add-similar-question", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID string `json:"question_id"`
			TopicID    string `json:"topic_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.mu.Lock()
		order := b.nextOrder
		b.nextOrder++
		b.mu.Unlock()
		json.NewEncoder(w).Encode(client.SimilarQuestionResponse{
			Question: models.Question{
				ID:            fmt.Sprintf("gen-%d", order),
				Stem:          "<p>What is the value of x in 2x + 5 = 13?</p>",
				Type:          models.QuestionMultipleChoice,
				CorrectAnswer: datatypes.JSON(`["B"]`),
				TopicID:       req.TopicID,
			},
			Topic:             models.Topic{ID: req.TopicID, Name: "Linear equations"},
			DisplayOrder:      order,
			SessionQuestionID: fmt.Sprintf("sq-gen-%d", order),
		})
	})

	return mux
}

func mcSessionQuestion(id, questionID string, order int, status models.QuestionStatus, correct string) models.SessionQuestion {
	return models.SessionQuestion{
		ID:           id,
		SessionID:    "sess-1",
		QuestionID:   questionID,
		TopicID:      "topic-1",
		DisplayOrder: order,
		Status:       status,
		Question: models.Question{
			ID:   questionID,
			Stem: "<p>stem</p>",
			Type: models.QuestionMultipleChoice,
			AnswerOptions: datatypes.JSON(`[
				{"id":"u1","content":"4"},
				{"id":"u2","content":"9"},
				{"id":"u3","content":"16"},
				{"id":"u4","content":"25"}
			]`),
			CorrectAnswer: datatypes.JSON(fmt.Sprintf(`[%q]`, correct)),
			TopicID:       "topic-1",
		},
		Topic: models.Topic{ID: "topic-1", Name: "Exponents"},
	}
}

func testController(t *testing.T, backend *fakeBackend) *Controller {
	t.Helper()
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	token := func(ctx context.Context) (string, error) { return "test-token", nil }
	api := client.New(srv.URL, token)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctrl := NewController("sess-1", api, logger)
	t.Cleanup(ctrl.Close)
	return ctrl
}

func TestLoadSortsByDisplayOrderAndResumes(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-4", "q4", 4, models.QuestionAnswered, "A"),
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionAnswered, "A"),
		mcSessionQuestion("sq-3", "q3", 3, models.QuestionNotStarted, "A"),
		mcSessionQuestion("sq-5", "q5", 5, models.QuestionAnswered, "A"),
		mcSessionQuestion("sq-2", "q2", 2, models.QuestionAnswered, "A"),
	})
	ctrl := testController(t, backend)

	resume, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	// Question 3 of 5 (zero-based index 2) is the first not started.
	assert.Equal(t, 2, resume)

	questions := ctrl.Questions()
	require.Len(t, questions, 5)
	for i, want := range []string{"q1", "q2", "q3", "q4", "q5"} {
		assert.Equal(t, want, questions[i].QuestionID)
	}
}

func TestLoadResumeIndexZeroWhenAllAnswered(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionAnswered, "A"),
		mcSessionQuestion("sq-2", "q2", 2, models.QuestionAnswered, "A"),
	})
	ctrl := testController(t, backend)

	resume, err := ctrl.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, resume)
}

func TestLoadRehydratesCorrectness(t *testing.T) {
	answered := mcSessionQuestion("sq-1", "q1", 1, models.QuestionAnswered, "B")
	answered.UserAnswer = datatypes.JSON(`["B"]`)
	wrong := mcSessionQuestion("sq-2", "q2", 2, models.QuestionAnswered, "B")
	wrong.UserAnswer = datatypes.JSON(`["A"]`)

	backend := newFakeBackend([]models.SessionQuestion{answered, wrong})
	ctrl := testController(t, backend)

	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	state, ok := ctrl.Answer("q1")
	require.True(t, ok)
	require.NotNil(t, state.IsCorrect)
	assert.True(t, *state.IsCorrect)

	state, ok = ctrl.Answer("q2")
	require.True(t, ok)
	require.NotNil(t, state.IsCorrect)
	assert.False(t, *state.IsCorrect)
}

func TestLoadRehydratesStoredAnswerForms(t *testing.T) {
	// Persisted answers keep whatever form the user submitted: an option id
	// for multiple choice, an enumerated alternative for free response.
	// Reloading must reach the same verdict as the original submission.
	byOptionID := mcSessionQuestion("sq-1", "q1", 1, models.QuestionAnswered, "B")
	byOptionID.UserAnswer = datatypes.JSON(`["u2"]`)

	spr := models.SessionQuestion{
		ID:           "sq-2",
		SessionID:    "sess-1",
		QuestionID:   "q2",
		TopicID:      "topic-1",
		DisplayOrder: 2,
		Status:       models.QuestionAnswered,
		UserAnswer:   datatypes.JSON(`["7.0"]`),
		Question: models.Question{
			ID:            "q2",
			Stem:          "<p>If 2x = 14, what is x?</p>",
			Type:          models.QuestionStudentResponse,
			CorrectAnswer: datatypes.JSON(`["7","7.0"]`),
			TopicID:       "topic-1",
		},
		Topic: models.Topic{ID: "topic-1", Name: "Linear equations"},
	}

	backend := newFakeBackend([]models.SessionQuestion{byOptionID, spr})
	ctrl := testController(t, backend)

	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	state, ok := ctrl.Answer("q1")
	require.True(t, ok)
	require.NotNil(t, state.IsCorrect)
	assert.True(t, *state.IsCorrect, "option id resolves to its label on regrade")

	state, ok = ctrl.Answer("q2")
	require.True(t, ok)
	require.NotNil(t, state.IsCorrect)
	assert.True(t, *state.IsCorrect, "any enumerated form of the answer stays correct")
}

func TestLoadFailsWithoutCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not reach the server without a token")
	}))
	defer srv.Close()

	token := func(ctx context.Context) (string, error) { return "", nil }
	api := client.New(srv.URL, token)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctrl := NewController("sess-1", api, logger)
	defer ctrl.Close()

	_, err := ctrl.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrNotAuthenticated)
}

func TestHandleAnswerChangeLastWriteWins(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionNotStarted, "B"),
	})
	ctrl := testController(t, backend)
	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	for _, v := range []string{"u1", "u3", "u4", "u2"} {
		ctrl.HandleAnswerChange("q1", v)
	}

	state, ok := ctrl.Answer("q1")
	require.True(t, ok)
	assert.Equal(t, []string{"u2"}, state.Values)
	assert.Equal(t, models.QuestionInProgress, state.Status)
	assert.Nil(t, state.IsCorrect, "correctness undefined while in progress")
}

func TestHandleSubmitGradesAndSyncs(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionNotStarted, "B"),
	})
	ctrl := testController(t, backend)
	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	ctrl.HandleAnswerChange("q1", "u2")
	correct, err := ctrl.HandleSubmit("q1", []string{"u2"}, 4, 37)
	require.NoError(t, err)
	assert.True(t, correct, "option u2 is labeled B")

	state, ok := ctrl.Answer("q1")
	require.True(t, ok)
	assert.Equal(t, models.QuestionAnswered, state.Status)
	require.NotNil(t, state.IsCorrect)
	assert.True(t, *state.IsCorrect)
	assert.Equal(t, 4, state.ConfidenceScore)
	assert.Equal(t, 37, state.TimeSpentSeconds)
	assert.Equal(t, "u2", state.OptionID, "raw option id survives submission")

	select {
	case qid := <-backend.patched:
		assert.Equal(t, "q1", qid)
	case <-time.After(2 * time.Second):
		t.Fatal("background patch never arrived")
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.patches, 1)
	patch := backend.patches[0]
	assert.Equal(t, []string{"u2"}, patch.UserAnswer)
	assert.Equal(t, models.QuestionAnswered, patch.Status)
	require.NotNil(t, patch.ConfidenceScore)
	assert.Equal(t, 4, *patch.ConfidenceScore)
	require.NotNil(t, patch.TimeSpentSeconds)
	assert.Equal(t, 37, *patch.TimeSpentSeconds)
}

func TestHandleSubmitWrongAnswer(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionNotStarted, "B"),
	})
	ctrl := testController(t, backend)
	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	correct, err := ctrl.HandleSubmit("q1", []string{"u1"}, 0, 10)
	require.NoError(t, err)
	assert.False(t, correct)

	state, _ := ctrl.Answer("q1")
	assert.Equal(t, 3, state.ConfidenceScore, "zero confidence defaults to 3")
}

func TestHandleSubmitDoesNotBlockOnSlowBackend(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionNotStarted, "B"),
	})

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			time.Sleep(300 * time.Millisecond)
		}
		backend.handler(t).ServeHTTP(w, r)
	})
	srv := httptest.NewServer(slow)
	defer srv.Close()

	token := func(ctx context.Context) (string, error) { return "test-token", nil }
	api := client.New(srv.URL, token)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctrl := NewController("sess-1", api, logger)
	defer ctrl.Close()

	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = ctrl.HandleSubmit("q1", []string{"u2"}, 3, 5)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond,
		"submit must return before the patch resolves")
}

func TestHandleSubmitUnknownQuestion(t *testing.T) {
	backend := newFakeBackend(nil)
	ctrl := testController(t, backend)
	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	_, err = ctrl.HandleSubmit("missing", []string{"A"}, 3, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in session")
}

func TestStatusInvariant(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionNotStarted, "B"),
	})
	ctrl := testController(t, backend)
	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	// Every reachable state: untouched, in progress, answered.
	_, ok := ctrl.Answer("q1")
	assert.False(t, ok)

	ctrl.HandleAnswerChange("q1", "u1")
	state, _ := ctrl.Answer("q1")
	assert.Nil(t, state.IsCorrect)

	_, err = ctrl.HandleSubmit("q1", []string{"u1"}, 3, 2)
	require.NoError(t, err)
	state, _ = ctrl.Answer("q1")
	require.NotNil(t, state.IsCorrect)
	assert.Equal(t, models.QuestionAnswered, state.Status)
}

func TestHandleGetFeedbackCachesPerQuestion(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionNotStarted, "B"),
		mcSessionQuestion("sq-2", "q2", 2, models.QuestionNotStarted, "B"),
	})
	ctrl := testController(t, backend)
	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	fb1, err := ctrl.HandleGetFeedback(ctx, "q1")
	require.NoError(t, err)
	fb2, err := ctrl.HandleGetFeedback(ctx, "q2")
	require.NoError(t, err)

	assert.True(t, strings.Contains(fb1.Explanation, "q1"))
	assert.True(t, strings.Contains(fb2.Explanation, "q2"))

	// Second fetch for q1 is served from cache: no extra backend call, and
	// q2's feedback did not clobber it.
	again, err := ctrl.HandleGetFeedback(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, fb1.Explanation, again.Explanation)

	backend.mu.Lock()
	assert.Equal(t, 2, backend.feedbackCalls)
	backend.mu.Unlock()

	ctrl.ClearFeedback("q1")
	_, ok := ctrl.Feedback("q1")
	assert.False(t, ok)
	_, ok = ctrl.Feedback("q2")
	assert.True(t, ok)
}

func TestHandleAddSimilarQuestionAppends(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionAnswered, "B"),
		mcSessionQuestion("sq-2", "q2", 2, models.QuestionNotStarted, "B"),
	})
	ctrl := testController(t, backend)
	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	before := ctrl.Questions()

	added, index, err := ctrl.HandleAddSimilarQuestion(context.Background(), "q1", "topic-1")
	require.NoError(t, err)

	after := ctrl.Questions()
	require.Len(t, after, len(before)+1)
	assert.Equal(t, len(before), index)
	assert.Equal(t, models.QuestionNotStarted, added.Status)

	for _, q := range before {
		assert.Greater(t, added.DisplayOrder, q.DisplayOrder)
	}
	// Existing entries untouched.
	for i := range before {
		assert.Equal(t, before[i].QuestionID, after[i].QuestionID)
		assert.Equal(t, before[i].DisplayOrder, after[i].DisplayOrder)
	}
}

func TestUpdateQuestionFlag(t *testing.T) {
	backend := newFakeBackend([]models.SessionQuestion{
		mcSessionQuestion("sq-1", "q1", 1, models.QuestionNotStarted, "B"),
	})
	ctrl := testController(t, backend)
	_, err := ctrl.Load(context.Background())
	require.NoError(t, err)

	ctrl.UpdateQuestionFlag("q1", true)
	assert.True(t, ctrl.Questions()[0].Question.IsFlagged)

	ctrl.UpdateQuestionFlag("q1", false)
	assert.False(t, ctrl.Questions()[0].Question.IsFlagged)
}

func TestQuestionTimer(t *testing.T) {
	backend := newFakeBackend(nil)

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	token := func(ctx context.Context) (string, error) { return "test-token", nil }
	api := client.New(srv.URL, token)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctrl := NewController("sess-1", api, logger, WithClock(func() time.Time { return current }))
	defer ctrl.Close()

	ctrl.ResetQuestionTimer()
	current = current.Add(42 * time.Second)
	assert.Equal(t, 42, ctrl.TimeSpent())

	ctrl.ResetQuestionTimer()
	assert.Equal(t, 0, ctrl.TimeSpent())
}
