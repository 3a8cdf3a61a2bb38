package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
	"github.com/ternarybob/pharmascout/internal/services/dispatcher"
)

// ScrapeResponse is the success envelope of POST /v1/scrape
type ScrapeResponse struct {
	OK    bool                   `json:"ok"`
	RunID string                 `json:"run_id"`
	Count int                    `json:"count"`
	Items []*models.ResultRecord `json:"items"`
}

// ScrapeHandler runs scrape batches over HTTP
type ScrapeHandler struct {
	runner   interfaces.BatchRunner
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewScrapeHandler creates a new ScrapeHandler
func NewScrapeHandler(runner interfaces.BatchRunner, logger arbor.ILogger) *ScrapeHandler {
	return &ScrapeHandler{
		runner:   runner,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ScrapeHandler handles POST /v1/scrape. It blocks until every company of the
// batch has a record.
func (h *ScrapeHandler) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.ScrapeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.ValidateRequest(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, dispatcher.ErrEmptyBatch) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Int("companies", len(req.Companies)).Msg("Scrape batch failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, ScrapeResponse{
		OK:    true,
		RunID: result.RunID,
		Count: result.Count,
		Items: result.Items,
	})
}

// ValidateRequest checks the request. Company names are kept verbatim so
// records echo them back unchanged; blank names are rejected.
func (h *ScrapeHandler) ValidateRequest(req *models.ScrapeRequest) error {
	if len(req.Companies) == 0 {
		return dispatcher.ErrEmptyBatch
	}
	for i, name := range req.Companies {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid field ScrapeRequest.Companies[%d]: failed %q", i, "required")
		}
	}
	req.ProxyURL = strings.TrimSpace(req.ProxyURL)

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}
