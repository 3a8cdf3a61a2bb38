package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
	"github.com/ternarybob/pharmascout/internal/services/extraction"
)

// Stage is the step a run is currently in
type Stage int32

const (
	StageLanding Stage = iota
	StageSearch
	StageResolve
	StageActivate
	StageSection
	StageExtract
	StageFallback
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageLanding:
		return "landing"
	case StageSearch:
		return "search"
	case StageResolve:
		return "resolve"
	case StageActivate:
		return "activate"
	case StageSection:
		return "section"
	case StageExtract:
		return "extract"
	case StageFallback:
		return "fallback"
	default:
		return "done"
	}
}

// TimeoutCode maps a stage to the failure a detected timeout in that stage produces
func (s Stage) TimeoutCode() models.ErrorCode {
	switch s {
	case StageLanding, StageSearch:
		return models.ErrSearchInputNotFound
	case StageResolve, StageActivate:
		return models.ErrCompanyLinkNotFound
	default:
		return models.ErrPipelineNotFound
	}
}

// Progress is shared between a run and its supervisor
type Progress struct {
	stage     atomic.Int32
	detailURL atomic.Value
}

// Set records the stage a run entered
func (p *Progress) Set(stage Stage) {
	if p != nil {
		p.stage.Store(int32(stage))
	}
}

// SetDetailURL records the detail view URL once known
func (p *Progress) SetDetailURL(u string) {
	if p != nil {
		p.detailURL.Store(u)
	}
}

// Stage returns the current stage
func (p *Progress) Stage() Stage {
	if p == nil {
		return StageLanding
	}
	return Stage(p.stage.Load())
}

// DetailURL returns the detail view URL once resolved
func (p *Progress) DetailURL() string {
	if p == nil {
		return ""
	}
	if v, ok := p.detailURL.Load().(string); ok {
		return v
	}
	return ""
}

// Runner drives one entity through every stage and always returns exactly one record
type Runner struct {
	settings      Settings
	consent       *ConsentDismisser
	search        *SearchExecutor
	resolver      *TargetResolver
	disambiguator *ContextDisambiguator
	section       *SectionActivator
	engine        *extraction.Engine
	emitter       *OutcomeEmitter
	logger        arbor.ILogger
}

// NewRunner wires the stages
func NewRunner(settings Settings, diagnostics interfaces.DiagnosticSink, logger arbor.ILogger) *Runner {
	return &Runner{
		settings:      settings,
		consent:       NewConsentDismisser(settings.ConsentTimeout, logger),
		search:        NewSearchExecutor(settings, logger),
		resolver:      NewTargetResolver(settings, logger),
		disambiguator: NewContextDisambiguator(settings, logger),
		section:       NewSectionActivator(settings, logger),
		engine:        extraction.NewEngine(logger, settings.Extraction),
		emitter:       NewOutcomeEmitter(diagnostics, logger),
		logger:        logger,
	}
}

// Emitter exposes the outcome emitter so supervisors can build records for aborted runs
func (r *Runner) Emitter() *OutcomeEmitter {
	return r.emitter
}

// Run executes the pipeline on page. progress may be nil.
func (r *Runner) Run(ctx context.Context, page interfaces.Page, req models.TargetRequest, progress *Progress) *models.ResultRecord {
	start := time.Now()
	record := r.run(ctx, page, req, progress)
	record.Duration = time.Since(start)
	progress.Set(StageDone)

	event := r.logger.Info()
	if record.Failed() {
		event = r.logger.Warn().Str("error", string(record.Error))
	}
	event.
		Str("company", req.EntityName).
		Str("kind", string(record.Kind)).
		Str("detail_url", record.DetailURL).
		Dur("duration", record.Duration).
		Msg("Scrape run finished")

	return record
}

func (r *Runner) run(ctx context.Context, page interfaces.Page, req models.TargetRequest, progress *Progress) *models.ResultRecord {
	// Records carry req.EntityName untouched; only the search text is trimmed
	entity := strings.TrimSpace(req.EntityName)

	progress.Set(StageLanding)
	navCtx, cancel := context.WithTimeout(ctx, r.settings.NavigationTimeout)
	if err := page.Navigate(navCtx, r.settings.StartURL); err != nil {
		// The search stage decides whether the page is usable
		r.logger.Warn().Str("company", entity).Str("url", r.settings.StartURL).Err(err).Msg("Start page navigation failed")
	}
	cancel()

	r.consent.Dismiss(ctx, page)
	if r.loginWall(ctx, page) {
		return r.emitter.Failure(ctx, req, "", models.ErrLoginRequired, nil, page)
	}

	progress.Set(StageSearch)
	if outcome := r.search.Execute(ctx, page, entity); !outcome.InputFound {
		return r.emitter.Failure(ctx, req, "", models.ErrSearchInputNotFound, nil, page)
	}

	progress.Set(StageResolve)
	resolution := r.resolver.Resolve(ctx, page, entity)
	if !resolution.Found {
		return r.emitter.Failure(ctx, req, "", models.ErrCompanyLinkNotFound, resolution.Hints(), page)
	}
	r.logger.Debug().
		Str("company", entity).
		Str("strategy", resolution.Strategy).
		Int("candidates", len(resolution.Candidates)).
		Msg("Target resolved")

	progress.Set(StageActivate)
	activation, err := r.disambiguator.Activate(ctx, page, resolution.Target)
	if err != nil {
		return r.emitter.Failure(ctx, req, "", models.ErrCompanyLinkNotFound, resolution.Hints(), page)
	}
	working := activation.Page
	if working != page {
		defer func() {
			if err := working.Close(); err != nil {
				r.logger.Debug().Err(err).Msg("Failed to close popup")
			}
		}()
	}

	detailURL, _ := working.URL(ctx)
	progress.SetDetailURL(detailURL)

	if r.loginWall(ctx, working) {
		return r.emitter.Failure(ctx, req, detailURL, models.ErrLoginRequired, nil, working)
	}

	progress.Set(StageSection)
	r.section.Activate(ctx, working)

	progress.Set(StageExtract)
	ex := r.engine.Run(ctx, working)

	var table *models.FallbackTable
	if ex.IsEmpty() {
		progress.Set(StageFallback)
		table = r.fallbackTable(ctx, working)
	}

	return r.emitter.Emit(ctx, req, detailURL, ex, table, working)
}

// fallbackTable waits (softly) for any table and parses the best candidate.
// Collapsed tables still parse from the snapshot, so presence is enough.
func (r *Runner) fallbackTable(ctx context.Context, page interfaces.Page) *models.FallbackTable {
	if !WaitPresent(ctx, page, interfaces.CSS("table"), r.settings.TableTimeout, r.settings.PollInterval) {
		r.logger.Debug().Dur("timeout", r.settings.TableTimeout).Msg("No table appeared on the detail view")
	}

	content, err := page.HTML(ctx)
	if err != nil {
		return nil
	}
	doc, err := extraction.NewDocument(content)
	if err != nil {
		return nil
	}
	return extraction.ExtractTable(doc)
}

func (r *Runner) loginWall(ctx context.Context, page interfaces.Page) bool {
	content, err := page.HTML(ctx)
	if err != nil {
		return false
	}
	doc, err := extraction.NewDocument(content)
	if err != nil {
		return false
	}
	current, _ := page.URL(ctx)
	return extraction.DetectLoginWall(doc, current)
}
