package guildsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs SyncAll on a cron schedule.
type Scheduler struct {
	service  *Service
	source   GuildSource
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
	parser   cron.Parser

	mu     sync.Mutex
	entry  cron.EntryID
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(log *slog.Logger, cfg Config, service *Service, source GuildSource) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		service:  service,
		source:   source,
		schedule: cfg.Schedule,
		logger:   log.With(slog.String("service", "guildsync_scheduler")),
		cron:     cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		parser:   parser,
	}
}

// Validate checks the schedule expression.
func (s *Scheduler) Validate() error {
	if s.schedule == "" {
		return nil
	}
	if _, err := s.parser.Parse(s.schedule); err != nil {
		return fmt.Errorf("invalid guild sync schedule %q: %w", s.schedule, err)
	}
	return nil
}

// Start schedules the refresh. An empty schedule disables it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == "" {
		s.logger.Info("guild sync disabled")
		return nil
	}
	if s.cancel != nil {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	id, err := s.cron.AddFunc(s.schedule, func() {
		s.service.SyncAll(runCtx, s.source)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule guild sync: %w", err)
	}
	s.entry, s.cancel = id, cancel
	s.cron.Start()
	s.logger.Info("guild sync scheduled", slog.String("schedule", s.schedule))
	return nil
}

// Stop cancels a running batch and waits for it to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	s.cron.Remove(s.entry)
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
