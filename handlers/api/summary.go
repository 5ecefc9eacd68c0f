package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jaehk/yt-subtitle-analyzer/errors"
	"github.com/jaehk/yt-subtitle-analyzer/models"
	"github.com/jaehk/yt-subtitle-analyzer/services/summary"
	"github.com/jaehk/yt-subtitle-analyzer/validation"
)

type SummaryHandler struct {
	service   summary.Service
	validator *validation.Validator
	logger    *logrus.Logger
}

type summarizeRequest struct {
	ID string `json:"id"`
}

func NewSummaryHandler(service summary.Service, validator *validation.Validator) *SummaryHandler {
	return &SummaryHandler{
		service:   service,
		validator: validator,
		logger:    logrus.StandardLogger(),
	}
}

// HandleSummarize handles POST /api/v1/summarize
func (h *SummaryHandler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	const op = "SummaryHandler.HandleSummarize"
	logger := h.logger.WithContext(r.Context())

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		MaxContentLength: 1024 * 1024, // 1MB
		AllowedMethods:   []string{http.MethodPost},
		RequireJSON:      true,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	var req summarizeRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if req.ID == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "ID is required"))
		return
	}

	t, err := h.service.Summarize(r.Context(), req.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to summarize transcript")
		respondError(w, r, err)
		return
	}

	logger.WithField("id", t.ID).Info("Summary generated")

	respondJSON(w, r, http.StatusOK, models.NewTranscriptResponse(t))
}
