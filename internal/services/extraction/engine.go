package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/models"
)

// Strategy is a pure function from a DOM snapshot to an optional partial result
type Strategy struct {
	Name    string
	Extract func(doc *goquery.Document) *models.Extraction
}

// Snapshotter is the part of a live page the engine needs between attempts
type Snapshotter interface {
	HTML(ctx context.Context) (string, error)
	Scroll(ctx context.Context, dy int) error
}

// Options tunes the per-strategy retry loop
type Options struct {
	Attempts        int
	SettleDelay     time.Duration
	RankedListLimit int
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 5
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	if o.RankedListLimit <= 0 {
		o.RankedListLimit = DefaultRankedListLimit
	}
	return o
}

// Engine runs the extraction strategies against a live page
type Engine struct {
	strategies []Strategy
	opts       Options
	logger     arbor.ILogger
}

// DefaultStrategies returns the strategies in priority order
func DefaultStrategies(rankedLimit int) []Strategy {
	return []Strategy{
		{Name: "pipeline_snapshot", Extract: ExtractPhases},
		{Name: "tags", Extract: ExtractTags},
		ExtractDiseaseDomains(rankedLimit),
		ExtractDrugTypes(rankedLimit),
		ExtractTargets(rankedLimit),
	}
}

// NewEngine creates an engine; nil strategies selects DefaultStrategies
func NewEngine(logger arbor.ILogger, opts Options, strategies ...Strategy) *Engine {
	opts = opts.withDefaults()
	if len(strategies) == 0 {
		strategies = DefaultStrategies(opts.RankedListLimit)
	}
	return &Engine{strategies: strategies, opts: opts, logger: logger}
}

// Run gives every strategy its own settle/retry loop and merges the partial
// results in priority order. Returns nil when every strategy came back empty.
func (e *Engine) Run(ctx context.Context, page Snapshotter) *models.Extraction {
	merged := &models.Extraction{}

	for _, strategy := range e.strategies {
		if ctx.Err() != nil {
			break
		}
		if out := e.runStrategy(ctx, page, strategy); out != nil {
			merged.Merge(out)
		}
	}

	if merged.IsEmpty() {
		return nil
	}
	return merged
}

// ExtractOnce applies every strategy to a single snapshot, without retries
func (e *Engine) ExtractOnce(doc *goquery.Document) *models.Extraction {
	merged := &models.Extraction{}
	for _, strategy := range e.strategies {
		if out, err := safeExtract(strategy, doc); err == nil {
			merged.Merge(out)
		}
	}
	if merged.IsEmpty() {
		return nil
	}
	return merged
}

func (e *Engine) runStrategy(ctx context.Context, page Snapshotter, strategy Strategy) *models.Extraction {
	for attempt := 1; attempt <= e.opts.Attempts; attempt++ {
		out, err := e.attempt(ctx, page, strategy)
		if err != nil {
			e.logger.Debug().
				Str("strategy", strategy.Name).
				Int("attempt", attempt).
				Err(err).
				Msg("Extraction attempt failed")
		} else if !out.IsEmpty() {
			e.logger.Debug().
				Str("strategy", strategy.Name).
				Int("attempt", attempt).
				Msg("Extraction strategy succeeded")
			return out
		}

		if attempt == e.opts.Attempts {
			break
		}
		if err := page.Scroll(ctx, 0); err != nil {
			e.logger.Debug().Str("strategy", strategy.Name).Err(err).Msg("Scroll between attempts failed")
		}
		if !sleep(ctx, e.opts.SettleDelay) {
			break
		}
	}
	return nil
}

func (e *Engine) attempt(ctx context.Context, page Snapshotter, strategy Strategy) (*models.Extraction, error) {
	content, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	doc, err := NewDocument(content)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return safeExtract(strategy, doc)
}

// safeExtract turns a panicking strategy into an empty attempt
func safeExtract(strategy Strategy, doc *goquery.Document) (out *models.Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name, r)
		}
	}()
	return strategy.Extract(doc), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
