package audit

import (
	"context"
	"errors"
	"testing"

	"complaintrack/server/internal/audit/domain"
)

type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListRecent(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return m.entries, nil
}

func TestLogEvent(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, func(context.Context) string { return "10.0.0.7" })

	l.LogEvent(context.Background(), 3, "login", "auth", "")

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.UserID != "3" {
		t.Errorf("UserID = %q, want %q", e.UserID, "3")
	}
	if e.Action != "login" || e.Resource != "auth" {
		t.Errorf("action/resource = %q/%q", e.Action, e.Resource)
	}
	if e.IP != "10.0.0.7" {
		t.Errorf("IP = %q, want extractor value", e.IP)
	}
	if e.ID == "" {
		t.Error("ID not assigned")
	}
}

func TestLogEvent_NoExtractorAndZeroUser(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, nil)

	l.LogEvent(context.Background(), 0, "login_failure", "auth", "unknown@example.com")

	e := repo.entries[0]
	if e.IP != "unknown" {
		t.Errorf("IP = %q, want %q", e.IP, "unknown")
	}
	if e.UserID != "" {
		t.Errorf("UserID = %q, want empty for unresolved account", e.UserID)
	}
}

func TestLogEvent_RepoFailureIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	l := NewLogger(repo, nil)

	// must not panic or surface the error
	l.LogEvent(context.Background(), 1, "logout", "auth", "")
}
