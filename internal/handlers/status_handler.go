package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/services/scheduler"
)

// StatusHandler serves health, version and watchlist status
type StatusHandler struct {
	storage   interfaces.ResultStorage
	scheduler interfaces.SchedulerService
	startedAt time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler. watchlist may be nil.
func NewStatusHandler(storage interfaces.ResultStorage, watchlist interfaces.SchedulerService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		storage:   storage,
		scheduler: watchlist,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// HealthHandler handles GET /health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	response := map[string]interface{}{
		"ok":         true,
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"goroutines": common.GetGoroutineCount(),
	}
	if h.storage != nil {
		count, err := h.storage.Count(r.Context())
		if err != nil {
			h.logger.Warn().Err(err).Msg("Health check failed to count results")
			WriteError(w, http.StatusServiceUnavailable, "result storage unavailable")
			return
		}
		response["results"] = count
	}

	WriteJSON(w, http.StatusOK, response)
}

// VersionHandler handles GET /version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// WatchlistHandler handles GET /v1/watchlist
func (h *StatusHandler) WatchlistHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.scheduler == nil {
		WriteError(w, http.StatusNotFound, "watchlist scheduler not configured")
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// RunWatchlistHandler handles POST /v1/watchlist/run. The run continues in
// the background after the response is written.
func (h *StatusHandler) RunWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if h.scheduler == nil {
		WriteError(w, http.StatusNotFound, "watchlist scheduler not configured")
		return
	}
	if h.scheduler.Status().IsRunning {
		WriteError(w, http.StatusConflict, scheduler.ErrAlreadyRunning.Error())
		return
	}

	common.SafeGo(h.logger, "watchlist-run", func() {
		if err := h.scheduler.RunNow(context.Background()); err != nil && !errors.Is(err, scheduler.ErrAlreadyRunning) {
			h.logger.Error().Err(err).Msg("Manual watchlist run failed")
		}
	})

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"ok":      true,
		"message": "watchlist run started",
	})
}
