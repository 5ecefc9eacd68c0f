package api

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jaehk/yt-subtitle-analyzer/errors"
	"github.com/jaehk/yt-subtitle-analyzer/models"
	"github.com/jaehk/yt-subtitle-analyzer/services/transcript"
	"github.com/jaehk/yt-subtitle-analyzer/validation"
)

type TranscriptHandler struct {
	service   transcript.Service
	validator *validation.Validator
	logger    *logrus.Logger
}

func NewTranscriptHandler(service transcript.Service, validator *validation.Validator) *TranscriptHandler {
	return &TranscriptHandler{
		service:   service,
		validator: validator,
		logger:    logrus.StandardLogger(),
	}
}

// HandleAnalyze handles POST /api/v1/analyze
func (h *TranscriptHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "TranscriptHandler.HandleAnalyze"
	logger := h.logger.WithContext(r.Context())

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		MaxContentLength: 1024 * 1024, // 1MB
		AllowedMethods:   []string{http.MethodPost},
		RequireJSON:      false,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	req, err := h.readAnalyzeRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"url":      req.URL,
		"language": req.Language,
	}).Info("Received analyze request")

	if req.URL == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "URL is required"))
		return
	}

	t, err := h.service.Analyze(r.Context(), req.URL, req.Language)
	if err != nil {
		logger.WithError(err).Error("Failed to start analysis")
		respondError(w, r, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"id":     t.ID,
		"status": t.Status,
	}).Info("Analysis job accepted")

	response := map[string]interface{}{
		"id":       t.ID,
		"status":   string(t.Status),
		"url":      t.URL,
		"language": t.Language,
	}

	respondJSON(w, r, http.StatusAccepted, response)
}

// HandleGetByID handles GET /api/v1/analyze/{id}
func (h *TranscriptHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	const op = "TranscriptHandler.HandleGetByID"
	logger := h.logger.WithContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "ID is required"))
		return
	}

	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		logger.WithError(err).Error("Failed to get transcript")
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewTranscriptResponse(t))
}

// HandleGetByURL handles GET /api/v1/transcript
func (h *TranscriptHandler) HandleGetByURL(w http.ResponseWriter, r *http.Request) {
	const op = "TranscriptHandler.HandleGetByURL"
	logger := h.logger.WithContext(r.Context())

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		AllowedMethods: []string{http.MethodGet},
	}); err != nil {
		respondError(w, r, err)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "URL parameter is required"))
		return
	}

	if err := h.validator.ValidateURL(url); err != nil {
		respondError(w, r, err)
		return
	}

	language := r.URL.Query().Get("lang")
	if err := h.validator.ValidateLanguage(language); err != nil {
		respondError(w, r, err)
		return
	}

	t, err := h.service.GetByURL(r.Context(), url, language)
	if err != nil {
		logger.WithError(err).Error("Failed to get transcript")
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewTranscriptResponse(t))
}

// readAnalyzeRequest accepts both JSON bodies and form submissions.
func (h *TranscriptHandler) readAnalyzeRequest(r *http.Request) (*models.AnalyzeRequest, error) {
	const op = "TranscriptHandler.readAnalyzeRequest"

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req models.AnalyzeRequest
		if err := readJSON(r, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errors.InvalidInput(op, err, "Failed to parse form data")
	}

	return &models.AnalyzeRequest{
		URL:      r.FormValue("url"),
		Language: r.FormValue("language"),
	}, nil
}
