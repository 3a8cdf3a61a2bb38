package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
)

// ErrAlreadyRunning is returned when a watchlist run is requested while one is in progress
var ErrAlreadyRunning = errors.New("watchlist run already in progress")

// Service runs the configured watchlist on a cron schedule
type Service struct {
	config  common.SchedulerConfig
	runner  interfaces.BatchRunner
	cron    *cron.Cron
	entryID cron.EntryID
	logger  arbor.ILogger

	runMu      sync.Mutex // Prevents overlapping runs
	mu         sync.Mutex // Protects the fields below
	started    bool
	isRunning  bool
	lastRun    *time.Time
	lastRunID  string
	lastError  string
	lastCount  int
	lastFailed int
}

// NewService creates a new scheduler service
func NewService(config common.SchedulerConfig, runner interfaces.BatchRunner, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		runner: runner,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

// Start registers the watchlist with cron. A disabled or empty watchlist is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already running")
	}
	if !s.config.Enabled {
		s.logger.Debug().Msg("Watchlist scheduler disabled")
		return nil
	}
	if len(s.config.Companies) == 0 {
		s.logger.Warn().Msg("Watchlist scheduler enabled without companies, not starting")
		return nil
	}

	id, err := s.cron.AddFunc(s.config.Schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.started = true

	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Int("companies", len(s.config.Companies)).
		Msg("Watchlist scheduler started")
	return nil
}

// Stop halts the scheduler and waits up to 30 seconds for a running batch
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Watchlist run still in progress at shutdown")
	}

	s.logger.Info().Msg("Watchlist scheduler stopped")
	return nil
}

func (s *Service) runScheduled() {
	defer common.Recover(s.logger, "watchlist")

	if err := s.RunNow(context.Background()); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			s.logger.Warn().Msg("Skipping scheduled watchlist run, previous run still in progress")
			return
		}
		s.logger.Error().Err(err).Msg("Scheduled watchlist run failed")
	}
}

// RunNow runs the watchlist and blocks until the batch completes
func (s *Service) RunNow(ctx context.Context) error {
	if len(s.config.Companies) == 0 {
		return fmt.Errorf("watchlist has no companies")
	}
	if !s.runMu.TryLock() {
		return ErrAlreadyRunning
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()

	result, err := s.runner.Run(ctx, models.ScrapeRequest{Companies: s.config.Companies})

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
	s.lastRun = &now
	if err != nil {
		s.lastError = err.Error()
		return err
	}

	failed := 0
	for _, record := range result.Items {
		if record.Failed() {
			failed++
		}
	}
	s.lastError = ""
	s.lastRunID = result.RunID
	s.lastCount = result.Count
	s.lastFailed = failed

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("count", result.Count).
		Int("failed", failed).
		Msg("Watchlist run completed")
	return nil
}

func (s *Service) Status() interfaces.WatchlistStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := interfaces.WatchlistStatus{
		Enabled:    s.config.Enabled,
		Schedule:   s.config.Schedule,
		Companies:  append([]string{}, s.config.Companies...),
		IsRunning:  s.isRunning,
		LastRun:    s.lastRun,
		LastRunID:  s.lastRunID,
		LastError:  s.lastError,
		LastCount:  s.lastCount,
		LastFailed: s.lastFailed,
	}
	if s.started {
		if entry := s.cron.Entry(s.entryID); !entry.Next.IsZero() {
			next := entry.Next
			status.NextRun = &next
		}
	}
	return status
}
