package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Browser     BrowserConfig    `toml:"browser"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Dispatcher  DispatcherConfig `toml:"dispatcher"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Publish     PublishConfig    `toml:"publish"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Screenshots string `toml:"screenshots"` // Directory for failure screenshots
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// BrowserConfig controls the headless browser driver
type BrowserConfig struct {
	Driver             string   `toml:"driver"` // "chromedp" (default) or "playwright"
	Headless           bool     `toml:"headless"`
	NoSandbox          bool     `toml:"no_sandbox"`
	DisableGPU         bool     `toml:"disable_gpu"`
	UserAgent          string   `toml:"user_agent"`
	WindowWidth        int      `toml:"window_width"`
	WindowHeight       int      `toml:"window_height"`
	BlockResourceTypes []string `toml:"block_resource_types"` // e.g. image, font, media
	BlockHosts         []string `toml:"block_hosts"`          // Substrings of request URLs to abort
	ScreenshotTimeout  string   `toml:"screenshot_timeout"`   // e.g. "10s"
}

// PipelineConfig holds the stage budgets of a single scrape run
type PipelineConfig struct {
	StartURL            string `toml:"start_url"`
	ResultsURLTemplate  string `toml:"results_url_template"` // %s is replaced by the escaped entity name
	NavigationTimeout   string `toml:"navigation_timeout"`
	ConsentTimeout      string `toml:"consent_timeout"`
	SearchTimeout       string `toml:"search_timeout"`
	FillTimeout         string `toml:"fill_timeout"`
	SubmitDeadline      string `toml:"submit_deadline"`
	ResultsTimeout      string `toml:"results_timeout"`
	ResultsRetryTimeout string `toml:"results_retry_timeout"`
	ClickTimeout        string `toml:"click_timeout"`
	PopupTimeout        string `toml:"popup_timeout"`
	NavigateWaitTimeout string `toml:"navigate_wait_timeout"`
	SectionSettle       string `toml:"section_settle"`
	ExtractAttempts     int    `toml:"extract_attempts"`
	SettleDelay         string `toml:"settle_delay"`
	TableTimeout        string `toml:"table_timeout"`
	PollInterval        string `toml:"poll_interval"`
	RankedListLimit     int    `toml:"ranked_list_limit"`
}

// DispatcherConfig controls batch fan-out
type DispatcherConfig struct {
	MaxConcurrency int     `toml:"max_concurrency"` // Default worker count when the request omits one
	MinConcurrency int     `toml:"min_concurrency"` // Floor applied to every batch
	UnitTimeout    string  `toml:"unit_timeout"`    // Hard timeout of a single entity
	LaunchRate     float64 `toml:"launch_rate"`     // Browser sessions opened per second, <=0 disables pacing
	ProxyURL       string  `toml:"proxy_url"`       // Default proxy when the request omits one
}

// SchedulerConfig describes the watchlist that is scraped on a cron schedule
type SchedulerConfig struct {
	Enabled   bool     `toml:"enabled"`
	Schedule  string   `toml:"schedule"` // Cron schedule with seconds field
	Companies []string `toml:"companies"`
}

// PublishConfig enables fan-out of result records over NATS
type PublishConfig struct {
	NATSURL string `toml:"nats_url"` // Empty disables publishing
	Subject string `toml:"subject"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/pharmascout",
				ResetOnStartup: false,
			},
			Filesystem: FilesystemConfig{
				Screenshots: "./data/screenshots",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Browser: BrowserConfig{
			Driver:             "chromedp",
			Headless:           true,
			NoSandbox:          true,
			DisableGPU:         true,
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:        1366,
			WindowHeight:       900,
			BlockResourceTypes: []string{"image", "font", "media"},
			BlockHosts:         []string{"googletagmanager", "google-analytics", "segment", "hotjar", "mixpanel"},
			ScreenshotTimeout:  "10s",
		},
		Pipeline: PipelineConfig{
			StartURL:            "https://synapse.patsnap.com/",
			ResultsURLTemplate:  "https://synapse.patsnap.com/search/result?q=%s",
			NavigationTimeout:   "60s",
			ConsentTimeout:      "2s",
			SearchTimeout:       "20s",
			FillTimeout:         "15s",
			SubmitDeadline:      "4s",
			ResultsTimeout:      "25s",
			ResultsRetryTimeout: "8s",
			ClickTimeout:        "8s",
			PopupTimeout:        "5s",
			NavigateWaitTimeout: "15s",
			SectionSettle:       "800ms",
			ExtractAttempts:     5,
			SettleDelay:         "500ms",
			TableTimeout:        "15s",
			PollInterval:        "250ms",
			RankedListLimit:     5,
		},
		Dispatcher: DispatcherConfig{
			MaxConcurrency: 5,
			MinConcurrency: 2,
			UnitTimeout:    "90s",
			LaunchRate:     2,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 0 6 * * *", // Daily at 06:00
		},
		Publish: PublishConfig{
			Subject: "pharmascout.results",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PHARMASCOUT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration. PORT is honoured for container platforms.
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if port := os.Getenv("PHARMASCOUT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("PHARMASCOUT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if path := os.Getenv("PHARMASCOUT_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if dir := os.Getenv("PHARMASCOUT_SCREENSHOTS_DIR"); dir != "" {
		config.Storage.Filesystem.Screenshots = dir
	}

	// Logging configuration
	if level := os.Getenv("PHARMASCOUT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("PHARMASCOUT_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Browser configuration
	if driver := os.Getenv("PHARMASCOUT_BROWSER_DRIVER"); driver != "" {
		config.Browser.Driver = driver
	}
	if headless := os.Getenv("PHARMASCOUT_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}

	// Pipeline configuration
	if startURL := os.Getenv("PHARMASCOUT_START_URL"); startURL != "" {
		config.Pipeline.StartURL = startURL
	}
	if tmpl := os.Getenv("PHARMASCOUT_RESULTS_URL_TEMPLATE"); tmpl != "" {
		config.Pipeline.ResultsURLTemplate = tmpl
	}

	// Dispatcher configuration
	if maxConc := os.Getenv("PHARMASCOUT_MAX_CONCURRENCY"); maxConc != "" {
		if mc, err := strconv.Atoi(maxConc); err == nil {
			config.Dispatcher.MaxConcurrency = mc
		}
	}
	if timeout := os.Getenv("PHARMASCOUT_UNIT_TIMEOUT"); timeout != "" {
		config.Dispatcher.UnitTimeout = timeout
	}
	if proxy := os.Getenv("PHARMASCOUT_PROXY_URL"); proxy != "" {
		config.Dispatcher.ProxyURL = proxy
	}

	// Scheduler configuration
	if enabled := os.Getenv("PHARMASCOUT_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("PHARMASCOUT_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
	if companies := os.Getenv("PHARMASCOUT_SCHEDULER_COMPANIES"); companies != "" {
		config.Scheduler.Companies = splitList(companies)
	}

	// Publish configuration
	if natsURL := os.Getenv("PHARMASCOUT_NATS_URL"); natsURL != "" {
		config.Publish.NATSURL = natsURL
	}
	if subject := os.Getenv("PHARMASCOUT_NATS_SUBJECT"); subject != "" {
		config.Publish.Subject = subject
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch strings.ToLower(c.Browser.Driver) {
	case "", "chromedp", "playwright":
	default:
		return fmt.Errorf("unknown browser driver %q", c.Browser.Driver)
	}
	if c.Pipeline.StartURL == "" {
		return fmt.Errorf("pipeline.start_url must not be empty")
	}
	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.Schedule); err != nil {
			return fmt.Errorf("scheduler.schedule: %w", err)
		}
	}
	return nil
}

// ValidateSchedule validates a six-field cron expression (seconds first)
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDuration parses a duration string, returning fallback when empty or malformed
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
