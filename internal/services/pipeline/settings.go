package pipeline

import (
	"time"

	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/services/extraction"
)

// Settings are the resolved stage budgets of a run
type Settings struct {
	StartURL           string
	ResultsURLTemplate string

	NavigationTimeout   time.Duration
	ConsentTimeout      time.Duration
	SearchTimeout       time.Duration
	FillTimeout         time.Duration
	SubmitDeadline      time.Duration
	ResultsTimeout      time.Duration
	ResultsRetryTimeout time.Duration
	ClickTimeout        time.Duration
	PopupTimeout        time.Duration
	NavigateWaitTimeout time.Duration
	SectionSettle       time.Duration
	TableTimeout        time.Duration
	ScreenshotTimeout   time.Duration
	PollInterval        time.Duration

	Extraction extraction.Options
}

// SettingsFromConfig parses the duration strings of the configuration
func SettingsFromConfig(pc common.PipelineConfig, bc common.BrowserConfig) Settings {
	return Settings{
		StartURL:            pc.StartURL,
		ResultsURLTemplate:  pc.ResultsURLTemplate,
		NavigationTimeout:   common.ParseDuration(pc.NavigationTimeout, 60*time.Second),
		ConsentTimeout:      common.ParseDuration(pc.ConsentTimeout, 2*time.Second),
		SearchTimeout:       common.ParseDuration(pc.SearchTimeout, 20*time.Second),
		FillTimeout:         common.ParseDuration(pc.FillTimeout, 15*time.Second),
		SubmitDeadline:      common.ParseDuration(pc.SubmitDeadline, 4*time.Second),
		ResultsTimeout:      common.ParseDuration(pc.ResultsTimeout, 25*time.Second),
		ResultsRetryTimeout: common.ParseDuration(pc.ResultsRetryTimeout, 8*time.Second),
		ClickTimeout:        common.ParseDuration(pc.ClickTimeout, 8*time.Second),
		PopupTimeout:        common.ParseDuration(pc.PopupTimeout, 5*time.Second),
		NavigateWaitTimeout: common.ParseDuration(pc.NavigateWaitTimeout, 15*time.Second),
		SectionSettle:       common.ParseDuration(pc.SectionSettle, 800*time.Millisecond),
		TableTimeout:        common.ParseDuration(pc.TableTimeout, 15*time.Second),
		ScreenshotTimeout:   common.ParseDuration(bc.ScreenshotTimeout, 10*time.Second),
		PollInterval:        common.ParseDuration(pc.PollInterval, 250*time.Millisecond),
		Extraction: extraction.Options{
			Attempts:        pc.ExtractAttempts,
			SettleDelay:     common.ParseDuration(pc.SettleDelay, 500*time.Millisecond),
			RankedListLimit: pc.RankedListLimit,
		},
	}
}
