package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/satprep-labs/practice-session-service/internal/models"
	"github.com/satprep-labs/practice-session-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

// ExportSessionResults builds an Excel workbook with one row per session
// question: order, topic, question, the student's answer, the correct
// answer, verdict, confidence and time spent.
func (s *exportService) ExportSessionResults(ctx context.Context, sessionID, userID string) (*excelize.File, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "practice_session", "export_results", "not owned by user")
	}

	questions, err := s.repo.SessionQuestion().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrSessionEmpty
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Order", "Topic", "Question", "Status", "Your Answer",
		"Correct Answer", "Result", "Confidence", "Time (s)",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, sq := range questions {
		values := []interface{}{
			sq.DisplayOrder,
			sq.Topic.Name,
			sq.Question.Stem,
			string(sq.Status),
			strings.Join(sq.UserAnswers(), ", "),
			strings.Join(sq.Question.CorrectAnswers(), ", "),
			verdictLabel(sq),
			intOrEmpty(sq.ConfidenceScore),
			intOrEmpty(sq.TimeSpentSeconds),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write result row: %w", err)
			}
		}
	}

	s.logger.Info("Session results exported",
		"session_id", sessionID,
		"rows", len(questions))
	return f, nil
}

func verdictLabel(sq *models.SessionQuestion) string {
	if sq.IsCorrect == nil {
		return ""
	}
	if *sq.IsCorrect {
		return "correct"
	}
	return "incorrect"
}

func intOrEmpty(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
