package models

import (
	"time"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Source identifies where the subtitle text came from.
type Source string

const (
	// SourceUploaded means the uploader published the subtitle track.
	SourceUploaded Source = "uploaded"
	// SourceAuto means the track was machine generated (ASR captions).
	SourceAuto Source = "auto"
	// SourceNone means the video carries no track in the requested language.
	SourceNone Source = "none"
)

type Transcript struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	VideoID   string    `json:"video_id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	Status    Status    `json:"status"`
	Source    Source    `json:"source"`
	Text      string    `json:"text,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status check methods
func (t *Transcript) IsProcessing() bool { return t.Status == StatusProcessing }
func (t *Transcript) IsCompleted() bool  { return t.Status == StatusCompleted }
func (t *Transcript) IsFailed() bool     { return t.Status == StatusFailed }

// IsStale checks if the job has been stuck in processing for too long.
func (t *Transcript) IsStale(timeout time.Duration) bool {
	if t.Status != StatusProcessing {
		return false
	}
	return time.Since(t.UpdatedAt) > timeout
}

// TranscriptResponse represents the API response.
type TranscriptResponse struct {
	ID           string `json:"id"`
	Status       Status `json:"status"`
	VideoURL     string `json:"video_url"`
	VideoID      string `json:"video_id,omitempty"`
	VideoTitle   string `json:"video_title,omitempty"`
	Language     string `json:"language"`
	SubtitleText string `json:"subtitle_text,omitempty"`
	SubtitleType Source `json:"subtitle_type,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NewTranscriptResponse creates a response from a transcript record.
func NewTranscriptResponse(t *Transcript) *TranscriptResponse {
	return &TranscriptResponse{
		ID:           t.ID,
		Status:       t.Status,
		VideoURL:     t.URL,
		VideoID:      t.VideoID,
		VideoTitle:   t.Title,
		Language:     t.Language,
		SubtitleText: t.Text,
		SubtitleType: t.Source,
		Summary:      t.Summary,
		Error:        t.Error,
	}
}

// AnalyzeRequest represents the incoming request for subtitle extraction.
type AnalyzeRequest struct {
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
}
