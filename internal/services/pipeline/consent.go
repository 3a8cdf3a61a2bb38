package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

var consentSelectors = []interfaces.Selector{
	interfaces.CSS(`#onetrust-accept-btn-handler`),
	interfaces.CSS(`button[id*="accept" i]`),
	interfaces.CSS(`button[aria-label*="accept" i]`),
	interfaces.XPath(`//button[contains(normalize-space(.), "Accept")]`),
	interfaces.XPath(`//button[contains(normalize-space(.), "Agree")]`),
}

// ConsentDismisser clears cookie and consent overlays. It never fails a run.
type ConsentDismisser struct {
	timeout time.Duration
	logger  arbor.ILogger
}

func NewConsentDismisser(timeout time.Duration, logger arbor.ILogger) *ConsentDismisser {
	return &ConsentDismisser{timeout: timeout, logger: logger}
}

// Dismiss clicks the first visible consent control, if any
func (c *ConsentDismisser) Dismiss(ctx context.Context, page interfaces.Page) bool {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sel, ok := FirstVisible(checkCtx, page, consentSelectors)
	if !ok {
		return false
	}

	if err := page.Click(checkCtx, sel); err != nil {
		c.logger.Debug().Str("selector", sel.String()).Err(err).Msg("Consent click failed")
		return false
	}

	c.logger.Debug().Str("selector", sel.String()).Msg("Consent overlay dismissed")
	return true
}
