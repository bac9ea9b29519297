// Package audit records one append-only event per tool invocation. The
// trail is optional: a nil *Service is valid and records nothing, and a
// failed write never fails the invocation it describes.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openbridge-io/slack-mcp-server/pkg/uuid"
)

// timeLayout is RFC3339 with fixed-width nanoseconds, so created_at strings
// sort lexicographically in insertion order. RFC3339Nano would drop trailing
// zeros and break that ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Service provides append-only audit logging. No updates or deletes.
type Service struct {
	db *sql.DB
}

// NewService creates an audit service over an already-migrated database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record writes one invocation event. Safe to call on a nil receiver.
func (s *Service) Record(ctx context.Context, toolName string, outcome Outcome, errorKind, errorStatus string, duration time.Duration) error {
	if s == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (
			id, tool_name, outcome, error_kind, error_status, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewV7().String(),
		toolName,
		string(outcome),
		nullableString(errorKind),
		nullableString(errorStatus),
		duration.Milliseconds(),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", toolName, err)
	}
	return nil
}

// List returns the most recent events, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Event, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_name, outcome, error_kind, error_status, duration_ms, created_at
		FROM audit_event
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]*Event, 0)
	for rows.Next() {
		var (
			event       Event
			errorKind   sql.NullString
			errorStatus sql.NullString
			durationMS  int64
			createdAt   string
		)
		if err := rows.Scan(
			&event.ID,
			&event.ToolName,
			(*string)(&event.Outcome),
			&errorKind,
			&errorStatus,
			&durationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		event.ErrorKind = errorKind.String
		event.ErrorStatus = errorStatus.String
		event.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			event.CreatedAt = ts
		}
		out = append(out, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
