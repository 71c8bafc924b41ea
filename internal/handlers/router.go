package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/satprep-labs/practice-session-service/internal/services"
	"github.com/satprep-labs/practice-session-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	auth           *AuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	auth *AuthMiddleware,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(
			serviceManager.Session(),
			serviceManager.Feedback(),
			serviceManager.Export(),
			logger,
		),
		auth: auth,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "practice-session-service",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(hm.auth.Handle())
	{
		sessions := v1.Group("/practice-sessions")
		{
			sessions.POST("", hm.sessionHandler.CreateSession)
			sessions.GET("", hm.sessionHandler.ListSessions)
			sessions.GET("/:id/questions", hm.sessionHandler.GetQuestions)
			sessions.PATCH("/:id/questions/:question_id", hm.sessionHandler.SubmitAnswer)
			sessions.GET("/:id/questions/:question_id/feedback", hm.sessionHandler.GetFeedback)
			sessions.POST("/:id/add-similar-question", hm.sessionHandler.AddSimilarQuestion)
			sessions.POST("/:id/complete", hm.sessionHandler.CompleteSession)
			sessions.GET("/:id/export", hm.sessionHandler.ExportResults)
		}
	}
}
