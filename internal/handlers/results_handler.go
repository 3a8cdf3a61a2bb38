package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
	"github.com/ternarybob/pharmascout/internal/storage/badger"
)

const (
	defaultResultsLimit = 50
	maxResultsLimit     = 500
)

// ResultsHandler serves stored result records
type ResultsHandler struct {
	storage interfaces.ResultStorage
	logger  arbor.ILogger
}

// NewResultsHandler creates a new ResultsHandler
func NewResultsHandler(storage interfaces.ResultStorage, logger arbor.ILogger) *ResultsHandler {
	return &ResultsHandler{
		storage: storage,
		logger:  logger,
	}
}

// ListHandler handles GET /v1/results?company=&run_id=&limit=
func (h *ResultsHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	limit := GetLimitParam(r, defaultResultsLimit, maxResultsLimit)

	var (
		records []*models.ResultRecord
		err     error
	)
	switch {
	case strings.TrimSpace(query.Get("run_id")) != "":
		records, err = h.storage.ListByRun(r.Context(), strings.TrimSpace(query.Get("run_id")))
	case strings.TrimSpace(query.Get("company")) != "":
		records, err = h.storage.ListByCompany(r.Context(), strings.TrimSpace(query.Get("company")), limit)
	default:
		records, err = h.storage.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list results")
		WriteError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	if records == nil {
		records = []*models.ResultRecord{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"count": len(records),
		"items": records,
	})
}

// GetHandler handles GET /v1/results/{id}
func (h *ResultsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "result id is required")
		return
	}

	record, err := h.storage.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, badger.ErrRecordNotFound) {
			WriteError(w, http.StatusNotFound, "result not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to get result")
		WriteError(w, http.StatusInternalServerError, "failed to get result")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"item": record,
	})
}
