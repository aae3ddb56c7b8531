package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	attemptsSheet    = "Attempts"
	questionsSheet   = "Questions"
	reportTimeLayout = "2006-01-02 15:04:05"
)

type reportService struct {
	repo    repositories.Repository
	storage ReportStorage
	logger  *slog.Logger
	now     func() time.Time
}

// NewReportService builds reports in memory. storage may be nil, then reports are only returned.
func NewReportService(repo repositories.Repository, storage ReportStorage, logger *slog.Logger) ReportService {
	return &reportService{
		repo:    repo,
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *reportService) Generate(ctx context.Context, testID uint, user *models.User) (*Report, error) {
	test, err := s.repo.Test().GetByID(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	if !canManage(test, user) {
		return nil, NewPermissionError(user.ID, testID, "test", "export report of", "not the test instructor")
	}

	// Read questions uncached so the report matches the attempts it is built from
	test.Questions, err = s.repo.Question().GetByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	attempts, err := s.repo.Attempt().ListByTest(ctx, testID, repositories.AttemptFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	content, err := BuildWorkbook(test, attempts, s.studentNames(ctx, attempts))
	if err != nil {
		return nil, err
	}

	report := &Report{
		FileName:    fmt.Sprintf("test-%d-report-%s.xlsx", testID, s.now().UTC().Format("20060102-150405")),
		ContentType: xlsxContentType,
		Content:     content,
	}

	if s.storage != nil {
		url, err := s.storage.Upload(ctx, "reports/"+report.FileName, xlsxContentType, bytes.NewReader(content), int64(len(content)))
		if err != nil {
			// The caller still gets the file inline
			s.logger.Error("Failed to upload report", "test_id", testID, "error", err)
		} else {
			report.URL = url
		}
	}

	s.logger.Info("Report generated",
		"test_id", testID,
		"attempts", len(attempts),
		"bytes", len(content),
		"uploaded", report.URL != "")
	return report, nil
}

// studentNames resolves display names. A failed lookup leaves the column empty.
func (s *reportService) studentNames(ctx context.Context, attempts []*models.TestAttempt) map[string]string {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if !slices.Contains(ids, a.StudentID) {
			ids = append(ids, a.StudentID)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve student names", "students", len(ids), "error", err)
		return names
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}

// BuildWorkbook renders the attempts and per-question analytics as an XLSX file.
// names maps student ids to display names and may be nil.
func BuildWorkbook(test *models.Test, attempts []*models.TestAttempt, names map[string]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(questionsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	rows := [][]interface{}{{"Attempt ID", "Student ID", "Student Name", "Attempt #", "Started At", "Completed At", "Score", "Max Score", "Percentage", "Passed", "Time Spent (min)"}}
	for _, a := range attempts {
		completed := "in progress"
		if a.CompletedAt != nil {
			completed = a.CompletedAt.UTC().Format(reportTimeLayout)
		}
		rows = append(rows, []interface{}{
			a.ID, a.StudentID, names[a.StudentID], a.AttemptNumber,
			a.StartedAt.UTC().Format(reportTimeLayout), completed,
			a.Score, a.MaxScore, a.Percentage, a.Passed, a.TimeSpent,
		})
	}
	if err := writeRows(f, attemptsSheet, rows, header); err != nil {
		return nil, err
	}

	rows = [][]interface{}{{"Question ID", "Text", "Type", "Answered", "Correct", "Accuracy %"}}
	for _, q := range ComputeQuestionAnalytics(test.Questions, attempts) {
		rows = append(rows, []interface{}{q.QuestionID, q.Text, string(q.Type), q.TotalAttempts, q.CorrectAnswers, q.Accuracy})
	}
	if err := writeRows(f, questionsSheet, rows, header); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}
