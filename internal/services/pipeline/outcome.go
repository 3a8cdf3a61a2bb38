package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
)

// screenshotCodes are the failures that carry a diagnostic screenshot
var screenshotCodes = map[models.ErrorCode]bool{
	models.ErrSearchInputNotFound: true,
	models.ErrCompanyLinkNotFound: true,
	models.ErrPipelineNotFound:    true,
}

// OutcomeEmitter builds the single result record of a run
type OutcomeEmitter struct {
	diagnostics interfaces.DiagnosticSink
	logger      arbor.ILogger
}

func NewOutcomeEmitter(diagnostics interfaces.DiagnosticSink, logger arbor.ILogger) *OutcomeEmitter {
	return &OutcomeEmitter{diagnostics: diagnostics, logger: logger}
}

// Emit picks the outcome in priority order: structured, fallback table, PIPELINE_NOT_FOUND
func (e *OutcomeEmitter) Emit(ctx context.Context, req models.TargetRequest, detailURL string, ex *models.Extraction, table *models.FallbackTable, page interfaces.Page) *models.ResultRecord {
	if !ex.IsEmpty() {
		return models.NewStructuredRecord(req.EntityName, detailURL, ex)
	}
	if table != nil {
		return models.NewFallbackRecord(req.EntityName, detailURL, table)
	}
	return e.Failure(ctx, req, detailURL, models.ErrPipelineNotFound, nil, page)
}

// Failure builds a failure record and triggers diagnostic capture for codes that warrant it
func (e *OutcomeEmitter) Failure(ctx context.Context, req models.TargetRequest, detailURL string, code models.ErrorCode, hints []string, page interfaces.Page) *models.ResultRecord {
	if page != nil && e.diagnostics != nil && screenshotCodes[code] {
		e.diagnostics.CaptureFailure(ctx, req.EntityName, code, page)
	}
	if hints == nil {
		hints = []string{}
	}
	return models.NewFailureRecord(req.EntityName, detailURL, code, hints)
}

// ScreenshotSink captures a full-page screenshot synchronously within a bounded
// budget and writes it to the artifact store in the background. Errors are logged and dropped.
type ScreenshotSink struct {
	store   interfaces.ArtifactStore
	timeout time.Duration
	logger  arbor.ILogger
}

func NewScreenshotSink(store interfaces.ArtifactStore, timeout time.Duration, logger arbor.ILogger) *ScreenshotSink {
	return &ScreenshotSink{store: store, timeout: timeout, logger: logger}
}

func (s *ScreenshotSink) CaptureFailure(ctx context.Context, entity string, code models.ErrorCode, page interfaces.Page) {
	if s.store == nil {
		return
	}

	// A run that hit its hard timeout still deserves a screenshot
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	png, err := page.Screenshot(captureCtx)
	cancel()
	if err != nil {
		s.logger.Debug().Str("company", entity).Str("code", string(code)).Err(err).Msg("Screenshot capture failed")
		return
	}

	common.SafeGo(s.logger, "save-screenshot", func() {
		path, err := s.store.SaveScreenshot(context.Background(), entity, png)
		if err != nil {
			s.logger.Warn().Str("company", entity).Err(err).Msg("Failed to save screenshot")
			return
		}
		s.logger.Info().Str("company", entity).Str("code", string(code)).Str("path", path).Msg("Failure screenshot saved")
	})
}
