package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved runtime settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("PharmaScout", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("driver", config.Browser.Driver).
		Str("start_url", config.Pipeline.StartURL).
		Int("max_concurrency", config.Dispatcher.MaxConcurrency).
		Bool("scheduler", config.Scheduler.Enabled).
		Msg("PharmaScout starting")
}
