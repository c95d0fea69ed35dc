package report

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// PageSummary aggregates interaction events for one page.
type PageSummary struct {
	PageID       string  `json:"page_id"`
	Sessions     int     `json:"sessions"`
	Attempts     int     `json:"attempts"`
	Submissions  int     `json:"submissions"`
	CorrectRate  float64 `json:"correct_rate"`
	HintsUsed    int     `json:"hints_used"`
	ContentFails int     `json:"content_errors"`
}

func (s *Service) SummaryByPage(ctx context.Context, pageID string) (*PageSummary, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, fmt.Errorf("page id is required")
	}

	out := &PageSummary{PageID: pageID}
	var correct sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT session_id) FILTER (WHERE kind = 'session_open'),
			COUNT(*) FILTER (WHERE kind = 'attempt'),
			COUNT(*) FILTER (WHERE kind = 'submit'),
			AVG(CASE WHEN kind = 'submit' THEN (detail->>'correct')::int END),
			COUNT(*) FILTER (WHERE kind = 'hint_reveal'),
			COUNT(*) FILTER (WHERE kind = 'content_error')
		FROM events
		WHERE page_id = $1
	`, pageID).Scan(&out.Sessions, &out.Attempts, &out.Submissions, &correct, &out.HintsUsed, &out.ContentFails); err != nil {
		return nil, fmt.Errorf("aggregate page events: %w", err)
	}
	if correct.Valid {
		out.CorrectRate = correct.Float64
	}
	return out, nil
}

// ExportEventsExcel writes the event log for a page (or all pages when
// pageID is empty) as an xlsx workbook, newest first.
func (s *Service) ExportEventsExcel(ctx context.Context, pageID string) ([]byte, error) {
	query := `
		SELECT session_id, page_id, COALESCE(part_id, ''), kind, detail::text, occurred_at
		FROM events
	`
	args := make([]any, 0, 1)
	if pageID = strings.TrimSpace(pageID); pageID != "" {
		query += ` WHERE page_id = $1`
		args = append(args, pageID)
	}
	query += ` ORDER BY occurred_at DESC LIMIT 10000`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"session_id", "page_id", "part_id", "kind", "detail", "occurred_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	rowNo := 2
	for rows.Next() {
		var sessionID, page, partID, kind, detail string
		var occurredAt sql.NullTime
		if err := rows.Scan(&sessionID, &page, &partID, &kind, &detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		at := ""
		if occurredAt.Valid {
			at = occurredAt.Time.Format("2006-01-02 15:04:05")
		}
		values := []any{sessionID, page, partID, kind, detail, at}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNo)
			_ = f.SetCellValue(sheet, cell, v)
		}
		rowNo++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	_ = f.SetColWidth(sheet, "A", "F", 24)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
