package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/pharmascout/internal/models"
)

// BatchRunner runs a batch of entities and returns one record per entity
type BatchRunner interface {
	Run(ctx context.Context, req models.ScrapeRequest) (*models.BatchResult, error)
}

// WatchlistStatus reports the state of the scheduled watchlist
type WatchlistStatus struct {
	Enabled    bool       `json:"enabled"`
	Schedule   string     `json:"schedule"`
	Companies  []string   `json:"companies"`
	IsRunning  bool       `json:"is_running"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRunID  string     `json:"last_run_id,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	LastCount  int        `json:"last_count"`
	LastFailed int        `json:"last_failed"`
}

// SchedulerService runs the watchlist on a cron schedule
type SchedulerService interface {
	Start() error
	Stop() error
	// RunNow triggers the watchlist immediately and blocks until it completes
	RunNow(ctx context.Context) error
	Status() WatchlistStatus
}
