package pipeline

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

var pipelineTabSelectors = []interfaces.Selector{
	interfaces.XPath(`//*[@role="tab"][contains(` + lowerXPath("normalize-space(.)") + `, "pipeline")]`),
	interfaces.XPath(`//*[contains(@class, "tab") and contains(., "Pipeline")]`),
}

// SectionActivator opens the "Pipeline" tab of the detail view when present
type SectionActivator struct {
	settings Settings
	logger   arbor.ILogger
}

func NewSectionActivator(settings Settings, logger arbor.ILogger) *SectionActivator {
	return &SectionActivator{settings: settings, logger: logger}
}

// Activate is best-effort and never fails the run
func (s *SectionActivator) Activate(ctx context.Context, page interfaces.Page) bool {
	clickCtx, cancel := context.WithTimeout(ctx, s.settings.ClickTimeout)
	defer cancel()

	sel, ok := FirstVisible(clickCtx, page, pipelineTabSelectors)
	if !ok {
		s.logger.Debug().Msg("Pipeline tab not present")
		return false
	}

	if err := page.Click(clickCtx, sel); err != nil {
		s.logger.Debug().Str("selector", sel.String()).Err(err).Msg("Pipeline tab click failed")
		return false
	}

	sleep(ctx, s.settings.SectionSettle)
	return true
}
