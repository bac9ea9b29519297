package audit

import (
	"context"
	"testing"
	"time"

	"github.com/openbridge-io/slack-mcp-server/internal/infra/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db)
}

func TestRecordAndList(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	ctx := context.Background()

	if err := s.Record(ctx, "slack_post_message", OutcomeSuccess, "", "", 120*time.Millisecond); err != nil {
		t.Fatalf("Record success failed: %v", err)
	}
	if err := s.Record(ctx, "slack_add_reaction", OutcomeError, "remote_operation_failed", "invalid_name", 30*time.Millisecond); err != nil {
		t.Fatalf("Record error failed: %v", err)
	}

	events, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}

	// Newest first.
	if events[0].ToolName != "slack_add_reaction" {
		t.Errorf("events[0].ToolName = %q, want slack_add_reaction", events[0].ToolName)
	}
	if events[0].Outcome != OutcomeError {
		t.Errorf("Outcome = %q, want error", events[0].Outcome)
	}
	if events[0].ErrorKind != "remote_operation_failed" || events[0].ErrorStatus != "invalid_name" {
		t.Errorf("error detail = %q/%q", events[0].ErrorKind, events[0].ErrorStatus)
	}
	if events[1].ErrorKind != "" {
		t.Errorf("success event carries error kind %q", events[1].ErrorKind)
	}
}

func TestList_InsertionOrderStableWithinSameSecond(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	ctx := context.Background()

	// Back-to-back writes land within the same second; ordering must still
	// reflect insertion order, not random id bits.
	names := []string{
		"slack_list_channels",
		"slack_post_message",
		"slack_add_reaction",
		"slack_get_users",
		"slack_get_user_profile",
	}
	for _, name := range names {
		if err := s.Record(ctx, name, OutcomeSuccess, "", "", time.Millisecond); err != nil {
			t.Fatalf("Record %s failed: %v", name, err)
		}
	}

	events, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(events) != len(names) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(names))
	}
	for i, event := range events {
		want := names[len(names)-1-i]
		if event.ToolName != want {
			t.Errorf("events[%d].ToolName = %q, want %q", i, event.ToolName, want)
		}
	}
}

func TestRecord_NilServiceIsNoop(t *testing.T) {
	t.Parallel()

	var s *Service
	if err := s.Record(context.Background(), "slack_get_users", OutcomeSuccess, "", "", 0); err != nil {
		t.Errorf("nil service Record returned %v, want nil", err)
	}
	events, err := s.List(context.Background(), 10)
	if err != nil || events != nil {
		t.Errorf("nil service List = (%v, %v), want (nil, nil)", events, err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	t.Parallel()

	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
}
