package pipeline

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

var searchInputSelectors = []interfaces.Selector{
	interfaces.CSS(`input[placeholder*="Search" i]`),
	interfaces.CSS(`input[type="search"]`),
	interfaces.CSS(`input[aria-label*="Search" i]`),
	interfaces.CSS(`input[name*="search" i]`),
	interfaces.CSS(`[role="search"] input`),
	interfaces.CSS(`header input[type="text"]`),
	interfaces.CSS(`[class*="search" i] input[type="text"]`),
}

var searchButtonSelectors = []interfaces.Selector{
	interfaces.CSS(`button[aria-label*="search" i]`),
	interfaces.CSS(`button[class*="search" i]`),
	interfaces.CSS(`[class*="search" i] button[type="submit"]`),
	interfaces.XPath(`//button[contains(` + lowerXPath("normalize-space(.)") + `, "search")]`),
}

var resultsURLRe = regexp.MustCompile(`(?i)(/search|/result|[?&](q|query|keyword)=)`)

// SearchOutcome describes what the search stage observed
type SearchOutcome struct {
	InputFound bool
	Tactic     string // First tactic that produced a state change
	URL        string
	Confirmed  bool
}

// submitTactic is one idempotent way of submitting the search
type submitTactic struct {
	name string
	run  func(ctx context.Context, page interfaces.Page, input interfaces.Selector) error
}

// SearchExecutor enters the entity name into the site search and submits it
type SearchExecutor struct {
	settings Settings
	tactics  []submitTactic
	logger   arbor.ILogger
}

func NewSearchExecutor(settings Settings, logger arbor.ILogger) *SearchExecutor {
	return &SearchExecutor{
		settings: settings,
		logger:   logger,
		tactics: []submitTactic{
			{name: "enter", run: pressEnterTwice},
			{name: "button", run: clickSearchButton},
			{name: "form_submit", run: func(ctx context.Context, page interfaces.Page, input interfaces.Selector) error {
				return page.Submit(ctx, input)
			}},
		},
	}
}

// Execute runs the search. Only a missing search control is reported as
// failure; a submission that shows no effect falls through to the results URL.
func (s *SearchExecutor) Execute(ctx context.Context, page interfaces.Page, entity string) SearchOutcome {
	input, err := WaitAny(ctx, page, searchInputSelectors, s.settings.SearchTimeout, s.settings.PollInterval)
	if err != nil {
		s.logger.Warn().Str("company", entity).Err(err).Msg("Search input not found")
		return SearchOutcome{}
	}

	before, _ := page.URL(ctx)

	fillCtx, cancel := context.WithTimeout(ctx, s.settings.FillTimeout)
	if err := page.Click(fillCtx, input); err != nil {
		s.logger.Debug().Str("selector", input.String()).Err(err).Msg("Search input click failed")
	}
	if err := page.Fill(fillCtx, input, entity); err != nil {
		s.logger.Warn().Str("selector", input.String()).Err(err).Msg("Search input fill failed")
	}
	cancel()

	outcome := SearchOutcome{InputFound: true}
	deadline := time.Now().Add(s.settings.SubmitDeadline)

	// Every tactic runs regardless of the earlier ones; a repeated submission
	// of the same query is harmless.
	for _, tactic := range s.tactics {
		tacticCtx, cancel := context.WithTimeout(ctx, s.settings.ClickTimeout)
		if err := tactic.run(tacticCtx, page, input); err != nil {
			s.logger.Debug().Str("tactic", tactic.name).Err(err).Msg("Search submission tactic failed")
		}
		cancel()

		if outcome.Tactic != "" {
			continue
		}
		if current, changed := waitURLChange(ctx, page, before, s.settings.PollInterval, s.settings.PollInterval); changed {
			outcome.Tactic = tactic.name
			outcome.URL = current
		}
	}

	if outcome.Tactic == "" {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = s.settings.PollInterval
		}
		if current, changed := waitURLChange(ctx, page, before, remaining, s.settings.PollInterval); changed {
			outcome.Tactic = "delayed"
			outcome.URL = current
		}
	}

	if outcome.Tactic == "" && s.settings.ResultsURLTemplate != "" {
		target := ResultsURL(s.settings.ResultsURLTemplate, entity)
		navCtx, cancel := context.WithTimeout(ctx, s.settings.NavigationTimeout)
		if err := page.Navigate(navCtx, target); err != nil {
			s.logger.Warn().Str("url", target).Err(err).Msg("Direct results navigation failed")
		} else {
			outcome.Tactic = "direct_url"
			outcome.URL, _ = page.URL(ctx)
		}
		cancel()
	}

	outcome.Confirmed = s.confirm(ctx, page, outcome.URL, entity)

	s.logger.Debug().
		Str("company", entity).
		Str("tactic", outcome.Tactic).
		Str("url", outcome.URL).
		Bool("confirmed", outcome.Confirmed).
		Msg("Search submitted")

	return outcome
}

// confirm checks for a results route or result-indicating text
func (s *SearchExecutor) confirm(ctx context.Context, page interfaces.Page, current, entity string) bool {
	if current == "" {
		current, _ = page.URL(ctx)
	}
	if resultsURLRe.MatchString(current) {
		return true
	}
	content, err := page.HTML(ctx)
	if err != nil {
		return false
	}
	lower := strings.ToLower(content)
	return strings.Contains(lower, "results") || strings.Contains(lower, strings.ToLower(entity))
}

// ResultsURL fills the results-route template with the query-escaped entity name
func ResultsURL(template, entity string) string {
	escaped := url.QueryEscape(entity)
	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", escaped, 1)
	}
	return template + escaped
}

func pressEnterTwice(ctx context.Context, page interfaces.Page, input interfaces.Selector) error {
	if err := page.Press(ctx, input, "Enter"); err != nil {
		return err
	}
	sleep(ctx, 150*time.Millisecond)
	// The first Enter often only closes the suggestion dropdown
	if err := page.Press(ctx, input, "Enter"); err != nil {
		return err
	}
	return nil
}

func clickSearchButton(ctx context.Context, page interfaces.Page, _ interfaces.Selector) error {
	button, ok := FirstVisible(ctx, page, searchButtonSelectors)
	if !ok {
		return ErrElementNotFound
	}
	return page.Click(ctx, button)
}
