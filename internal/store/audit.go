package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Activity actions recorded by the console.
const (
	ActionReportsUploaded = "reports_uploaded"
	ActionReportDeleted   = "report_deleted"
	ActionChatSent        = "chat_sent"
	ActionStoryboard      = "storyboard_generated"
	ActionBackup          = "backup_created"
)

// Activity is one entry of the local activity log.
type Activity struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	ReportID  string                 `json:"report_id,omitempty"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

// RecordActivity appends an activity entry.
func (s *Store) RecordActivity(ctx context.Context, a Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Details == nil {
		a.Details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal activity details: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activity (id, action, report_id, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Action, nullable(a.ReportID), string(detailsJSON), a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListActivity returns the most recent entries first. limit <= 0 returns all.
func (s *Store) ListActivity(ctx context.Context, limit int) ([]Activity, error) {
	query := `SELECT id, action, report_id, details, created_at FROM activity ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var reportID sql.NullString
		var detailsJSON string
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.Action, &reportID, &detailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.ReportID = reportID.String
		a.CreatedAt = time.Unix(0, createdAt)
		if err := json.Unmarshal([]byte(detailsJSON), &a.Details); err != nil {
			a.Details = map[string]interface{}{"raw": detailsJSON}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
