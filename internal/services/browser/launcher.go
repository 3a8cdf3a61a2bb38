package browser

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// NewLauncher returns the launcher of the configured driver; empty selects chromedp
func NewLauncher(config common.BrowserConfig, logger arbor.ILogger) (interfaces.BrowserLauncher, error) {
	switch strings.ToLower(strings.TrimSpace(config.Driver)) {
	case "", DriverChromedp:
		return NewChromeLauncher(config, logger), nil
	case DriverPlaywright:
		return NewPlaywrightLauncher(config, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", config.Driver)
	}
}
