// Package schedule runs the periodic duplicate detection sweep on a cron
// schedule.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rolodexhq/rolodex/internal/dedupe"
)

// Runner is the detection engine the scheduler drives.
type Runner interface {
	Run(ctx context.Context, limit int) (dedupe.RunResult, error)
}

const sweepTimeout = 5 * time.Minute

// Service owns the cron loop for recurring dedupe runs.
type Service struct {
	cron   *cron.Cron
	parser cron.Parser
	runner Runner
	spec   string
	limit  int
	logger *slog.Logger

	mu    sync.Mutex
	entry cron.EntryID
}

// NewService builds the scheduler; Start arms it. An empty spec disables the
// sweep entirely.
func NewService(log *slog.Logger, runner Runner, spec string, limit int) *Service {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		cron:   cron.New(cron.WithParser(parser)),
		parser: parser,
		runner: runner,
		spec:   spec,
		limit:  limit,
		logger: log.With(slog.String("service", "schedule")),
	}
}

// Start validates the cron spec, registers the sweep, and starts the loop.
func (s *Service) Start() error {
	if s.spec == "" {
		s.logger.Info("dedupe sweep disabled: no cron spec configured")
		return nil
	}
	if _, err := s.parser.Parse(s.spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.cron.AddFunc(s.spec, s.sweep)
	if err != nil {
		return err
	}
	s.entry = entry
	s.cron.Start()
	s.logger.Info("dedupe sweep scheduled", slog.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Service) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	result, err := s.runner.Run(ctx, s.limit)
	if err != nil {
		s.logger.Error("scheduled dedupe run failed", slog.Any("error", err))
		return
	}
	s.logger.Info("scheduled dedupe run finished",
		slog.Int("created_suggestions", result.CreatedSuggestions))
}
