package schedule

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/rolodexhq/rolodex/internal/dedupe"
)

type mockRunner struct {
	mu     sync.Mutex
	called int
	limit  int
	err    error
}

func (m *mockRunner) Run(_ context.Context, limit int) (dedupe.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called++
	m.limit = limit
	if m.err != nil {
		return dedupe.RunResult{}, m.err
	}
	return dedupe.RunResult{Ran: true, CreatedSuggestions: 2}, nil
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	svc := NewService(slog.Default(), &mockRunner{}, "not a cron spec", 500)
	if err := svc.Start(); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestStartWithEmptySpecIsDisabled(t *testing.T) {
	runner := &mockRunner{}
	svc := NewService(slog.Default(), runner, "", 500)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if runner.called != 0 {
		t.Fatalf("expected no runs, got %d", runner.called)
	}
}

func TestSweepPassesLimit(t *testing.T) {
	runner := &mockRunner{}
	svc := NewService(slog.Default(), runner, "@hourly", 250)
	svc.sweep()
	if runner.called != 1 {
		t.Fatalf("expected one run, got %d", runner.called)
	}
	if runner.limit != 250 {
		t.Fatalf("expected limit 250, got %d", runner.limit)
	}
}

func TestSweepLogsAndSwallowsErrors(t *testing.T) {
	runner := &mockRunner{err: context.DeadlineExceeded}
	svc := NewService(slog.Default(), runner, "@hourly", 500)
	svc.sweep()
	if runner.called != 1 {
		t.Fatalf("expected one run, got %d", runner.called)
	}
}
