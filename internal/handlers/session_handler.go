package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/satprep-labs/practice-session-service/internal/repositories"
	"github.com/satprep-labs/practice-session-service/internal/services"
	"github.com/satprep-labs/practice-session-service/internal/utils"
)

// SessionHandler serves the practice-session API.
type SessionHandler struct {
	BaseHandler
	sessionService  services.SessionService
	feedbackService services.FeedbackService
	exportService   services.ExportService
}

func NewSessionHandler(
	sessionService services.SessionService,
	feedbackService services.FeedbackService,
	exportService services.ExportService,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:     NewBaseHandler(logger),
		sessionService:  sessionService,
		feedbackService: feedbackService,
		exportService:   exportService,
	}
}

// CreateSession handles POST /api/v1/practice-sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.sessionService.Create(c.Request.Context(), &req, CurrentUserID(c))
	if err != nil {
		h.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListSessions handles GET /api/v1/practice-sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	filters := repositories.SessionFilters{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		s := models.SessionStatus(status)
		filters.Status = &s
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filters.Offset = offset
	}

	resp, err := h.sessionService.List(c.Request.Context(), CurrentUserID(c), filters)
	if err != nil {
		h.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetQuestions handles GET /api/v1/practice-sessions/:id/questions
func (h *SessionHandler) GetQuestions(c *gin.Context) {
	resp, err := h.sessionService.GetQuestions(c.Request.Context(), c.Param("id"), CurrentUserID(c))
	if err != nil {
		h.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitAnswer handles PATCH /api/v1/practice-sessions/:id/questions/:question_id
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.sessionService.SubmitAnswer(
		c.Request.Context(),
		c.Param("id"),
		c.Param("question_id"),
		CurrentUserID(c),
		&req,
	)
	if err != nil {
		h.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetFeedback handles GET /api/v1/practice-sessions/:id/questions/:question_id/feedback
func (h *SessionHandler) GetFeedback(c *gin.Context) {
	regenerate := c.Query("regenerate") == "true"

	resp, err := h.feedbackService.GetFeedback(
		c.Request.Context(),
		c.Param("id"),
		c.Param("question_id"),
		CurrentUserID(c),
		regenerate,
	)
	if err != nil {
		h.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// AddSimilarQuestion handles POST /api/v1/practice-sessions/:id/add-similar-question
func (h *SessionHandler) AddSimilarQuestion(c *gin.Context) {
	var req services.AddSimilarQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.sessionService.AddSimilarQuestion(c.Request.Context(), c.Param("id"), CurrentUserID(c), &req)
	if err != nil {
		h.RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// CompleteSession handles POST /api/v1/practice-sessions/:id/complete
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	resp, err := h.sessionService.Complete(c.Request.Context(), c.Param("id"), CurrentUserID(c))
	if err != nil {
		h.RespondWithServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "practice session completed", resp)
}

// ExportResults handles GET /api/v1/practice-sessions/:id/export
func (h *SessionHandler) ExportResults(c *gin.Context) {
	sessionID := c.Param("id")
	file, err := h.exportService.ExportSessionResults(c.Request.Context(), sessionID, CurrentUserID(c))
	if err != nil {
		h.RespondWithServiceError(c, err)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "failed to write export file", err)
		return
	}

	filename := fmt.Sprintf("session-%s-results.xlsx", sessionID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
