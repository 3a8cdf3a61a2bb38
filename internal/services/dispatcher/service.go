package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
	"github.com/ternarybob/pharmascout/internal/services/pipeline"
	"github.com/ternarybob/pharmascout/internal/worker"
)

// ErrEmptyBatch is returned for a batch without entities
var ErrEmptyBatch = errors.New("companies must be a non-empty list")

// DefaultMinConcurrency is the floor applied to every batch
const DefaultMinConcurrency = 2

// UnitRunner drives one entity on an open page
type UnitRunner interface {
	Run(ctx context.Context, page interfaces.Page, req models.TargetRequest, progress *pipeline.Progress) *models.ResultRecord
	Emitter() *pipeline.OutcomeEmitter
}

// Service fans a batch of entities out over isolated sessions of one browser
type Service struct {
	config      common.DispatcherConfig
	unitTimeout time.Duration
	launcher    interfaces.BrowserLauncher
	runner      UnitRunner
	storage     interfaces.ResultStorage
	publisher   interfaces.ResultPublisher
	logger      arbor.ILogger
}

// NewService creates the dispatcher. storage and publisher may be nil.
func NewService(
	config common.DispatcherConfig,
	launcher interfaces.BrowserLauncher,
	runner UnitRunner,
	storage interfaces.ResultStorage,
	publisher interfaces.ResultPublisher,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:      config,
		unitTimeout: common.ParseDuration(config.UnitTimeout, 90*time.Second),
		launcher:    launcher,
		runner:      runner,
		storage:     storage,
		publisher:   publisher,
		logger:      logger,
	}
}

// EffectiveConcurrency resolves the worker count of a batch: the request's
// value, else the configured default, never below the floor
func (s *Service) EffectiveConcurrency(requested int) int {
	floor := s.config.MinConcurrency
	if floor <= 0 {
		floor = DefaultMinConcurrency
	}
	workers := requested
	if workers <= 0 {
		workers = s.config.MaxConcurrency
	}
	if workers < floor {
		workers = floor
	}
	return workers
}

// Run scrapes every company of the batch and returns exactly one record per
// company, in completion order. Only an empty batch or a browser that cannot
// start fail the whole batch.
func (s *Service) Run(ctx context.Context, req models.ScrapeRequest) (*models.BatchResult, error) {
	targets := req.Targets()
	if len(targets) == 0 {
		return nil, ErrEmptyBatch
	}

	startTime := time.Now()
	runID := common.NewRunID()
	logger := s.logger.WithCorrelationId(runID)

	proxyURL := req.ProxyURL
	if proxyURL == "" {
		proxyURL = s.config.ProxyURL
	}
	workers := s.EffectiveConcurrency(req.MaxConcurrency)

	logger.Info().
		Int("companies", len(targets)).
		Int("workers", workers).
		Bool("proxy", proxyURL != "").
		Msg("Starting scrape batch")

	browser, err := s.launcher.Launch(ctx, interfaces.LaunchOptions{ProxyURL: proxyURL})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close browser")
		}
	}()

	pool := worker.NewWorkerPool(worker.Options{
		Workers:     workers,
		LaunchRate:  s.config.LaunchRate,
		UnitTimeout: s.unitTimeout,
	}, func(unitCtx context.Context, target models.TargetRequest) (*models.ResultRecord, error) {
		return s.runUnit(unitCtx, browser, target, logger), nil
	}, logger)

	result := &models.BatchResult{RunID: runID, Items: make([]*models.ResultRecord, 0, len(targets))}
	failed := 0

	pool.Run(ctx, targets, func(res worker.Result[models.TargetRequest, *models.ResultRecord]) {
		record := res.Output
		if res.Err != nil || record == nil {
			logger.Error().Str("company", res.Input.EntityName).Err(res.Err).Msg("Scrape unit produced no record")
			record = s.runner.Emitter().Failure(ctx, res.Input, "", models.ErrPipelineNotFound, nil, nil)
		}
		s.finalize(ctx, runID, record, logger)
		if record.Failed() {
			failed++
		}
		result.Items = append(result.Items, record)
	})

	result.Count = len(result.Items)
	result.Duration = time.Since(startTime)

	logger.Info().
		Int("count", result.Count).
		Int("failed", failed).
		Dur("duration", result.Duration).
		Msg("Scrape batch finished")

	return result, nil
}

// runUnit runs one entity under the unit's hard timeout. When the timeout fires
// first, the record is synthesized from the stage the run had reached.
func (s *Service) runUnit(ctx context.Context, browser interfaces.Browser, target models.TargetRequest, logger arbor.ILogger) *models.ResultRecord {
	startTime := time.Now()
	emitter := s.runner.Emitter()

	page, err := browser.NewPage(ctx)
	if err != nil {
		logger.Warn().Str("company", target.EntityName).Err(err).Msg("Failed to open browser session")
		record := emitter.Failure(ctx, target, "", pipeline.StageLanding.TimeoutCode(), nil, nil)
		record.Duration = time.Since(startTime)
		return record
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Debug().Str("company", target.EntityName).Err(err).Msg("Failed to close browser session")
		}
	}()

	progress := &pipeline.Progress{}
	done := make(chan *models.ResultRecord, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				common.LogPanic(logger, "scrape-unit", r)
				done <- nil
			}
		}()
		done <- s.runner.Run(ctx, page, target, progress)
	}()

	select {
	case record := <-done:
		if record == nil {
			record = emitter.Failure(ctx, target, progress.DetailURL(), models.ErrPipelineNotFound, nil, page)
			record.Duration = time.Since(startTime)
		}
		return record
	case <-ctx.Done():
		stage := progress.Stage()
		logger.Warn().
			Str("company", target.EntityName).
			Str("stage", stage.String()).
			Err(ctx.Err()).
			Msg("Scrape unit hit its hard timeout")
		record := emitter.Failure(ctx, target, progress.DetailURL(), stage.TimeoutCode(), nil, page)
		record.Duration = time.Since(startTime)
		return record
	}
}

// finalize stamps identifiers, then persists and publishes the record. Sink errors are logged only.
func (s *Service) finalize(ctx context.Context, runID string, record *models.ResultRecord, logger arbor.ILogger) {
	record.ID = common.NewRecordID()
	record.RunID = runID

	sinkCtx := context.WithoutCancel(ctx)
	if s.storage != nil {
		if err := s.storage.Append(sinkCtx, record); err != nil {
			logger.Error().Str("company", record.Company).Err(err).Msg("Failed to store result")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(sinkCtx, record); err != nil {
			logger.Warn().Str("company", record.Company).Err(err).Msg("Failed to publish result")
		}
	}
}
