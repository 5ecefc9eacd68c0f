package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jaehk/yt-subtitle-analyzer/errors"
	"github.com/jaehk/yt-subtitle-analyzer/models"
	"github.com/jaehk/yt-subtitle-analyzer/repository"
	"github.com/jaehk/yt-subtitle-analyzer/subtitle"
	"github.com/jaehk/yt-subtitle-analyzer/validation"
	"github.com/jaehk/yt-subtitle-analyzer/ytdlp"
)

// noSubtitlesMessage is returned as the transcript text when the video has no
// track in the requested language. This is a completed result, not a failure.
const noSubtitlesMessage = "This video has no subtitles in the requested language."

type Repository = repository.TranscriptRepository

type service struct {
	repo      Repository
	extractor Extractor
	validator *validation.Validator
	archiver  Archiver
	config    Config
	logger    *logrus.Logger
}

func NewService(
	repo Repository,
	extractor Extractor,
	validator *validation.Validator,
	archiver Archiver,
	config Config,
) Service {
	return &service{
		repo:      repo,
		extractor: extractor,
		validator: validator,
		archiver:  archiver,
		config:    config,
		logger:    logrus.StandardLogger(),
	}
}

func (s *service) Analyze(ctx context.Context, url, language string) (*models.Transcript, error) {
	const op = "TranscriptService.Analyze"

	if language == "" {
		language = s.config.DefaultLanguage
	}

	logger := s.logger.WithFields(logrus.Fields{
		"operation": op,
		"url":       url,
		"language":  language,
	})
	logger.Info("Starting extraction request")

	if err := s.validator.ValidateURL(url); err != nil {
		logger.WithError(err).Info("URL validation failed")
		return nil, err
	}
	if err := s.validator.ValidateLanguage(language); err != nil {
		logger.WithError(err).Info("Language validation failed")
		return nil, err
	}

	// Check for an existing record first
	transcript, err := s.repo.FindByURL(ctx, url, language)
	if err == nil {
		if shouldProcessExisting(transcript, s.config.ProcessTimeout) {
			return s.startProcessing(ctx, transcript)
		}
		return transcript, nil
	}
	if !errors.IsNotFound(err) {
		return nil, errors.Internal(op, err, "Failed to look up transcript")
	}

	if restored, ok := s.restoreFromArchive(ctx, url, language); ok {
		logger.Info("Restored transcript from archive")
		return restored, nil
	}

	transcript = &models.Transcript{
		ID:        uuid.New().String(),
		URL:       url,
		VideoID:   validation.ExtractVideoID(url),
		Language:  language,
		Source:    models.SourceNone,
		CreatedAt: time.Now(),
	}

	result, err := s.startProcessing(ctx, transcript)
	if err != nil {
		// A concurrent request may have won the unique (url, language) insert.
		if existing, lookupErr := s.repo.FindByURL(ctx, url, language); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}

	return result, nil
}

// restoreFromArchive checks object storage for a previously archived result
// before spending a fresh extraction on a known video.
func (s *service) restoreFromArchive(ctx context.Context, url, language string) (*models.Transcript, bool) {
	if s.archiver == nil {
		return nil, false
	}

	videoID := validation.ExtractVideoID(url)
	if videoID == "" {
		return nil, false
	}

	archived, err := s.archiver.GetTranscript(ctx, videoID, language)
	if err != nil {
		return nil, false
	}

	archived.ID = uuid.New().String()
	archived.URL = url
	archived.CreatedAt = time.Now()
	archived.UpdatedAt = time.Now()

	if err := s.repo.Save(ctx, archived); err != nil {
		s.logger.WithError(err).Warn("Failed to cache archived transcript")
		return nil, false
	}

	return archived, true
}

func shouldProcessExisting(transcript *models.Transcript, timeout time.Duration) bool {
	switch transcript.Status {
	case models.StatusCompleted:
		return false
	case models.StatusProcessing:
		return transcript.IsStale(timeout)
	case models.StatusFailed:
		return true
	default:
		return true
	}
}

func (s *service) startProcessing(ctx context.Context, transcript *models.Transcript) (*models.Transcript, error) {
	const op = "TranscriptService.startProcessing"

	transcript.Status = models.StatusProcessing
	transcript.UpdatedAt = time.Now()
	transcript.Error = "" // Clear any previous error

	if err := s.repo.Save(ctx, transcript); err != nil {
		return nil, errors.Internal(op, err, "Failed to save transcript")
	}

	// Extraction runs in the background; clients poll by ID.
	go s.process(transcript)

	return transcript, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Transcript, error) {
	const op = "TranscriptService.Get"

	if id == "" {
		return nil, errors.InvalidInput(op, nil, "ID is required")
	}

	transcript, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, errors.NotFound(op, err, "Transcript not found")
	}

	return transcript, nil
}

func (s *service) GetByURL(ctx context.Context, url, language string) (*models.Transcript, error) {
	const op = "TranscriptService.GetByURL"

	if language == "" {
		language = s.config.DefaultLanguage
	}
	if err := s.validator.ValidateURL(url); err != nil {
		return nil, err
	}

	transcript, err := s.repo.FindByURL(ctx, url, language)
	if err != nil {
		return nil, errors.NotFound(op, err, "Transcript not found")
	}

	return transcript, nil
}

func (s *service) process(transcript *models.Transcript) {
	logger := s.logger.WithFields(logrus.Fields{
		"transcript_id": transcript.ID,
		"language":      transcript.Language,
	})
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ProcessTimeout)
	defer cancel()

	logger.Info("Starting subtitle extraction")

	if err := s.extract(ctx, transcript, logger); err != nil {
		logger.WithError(err).Error("Extraction failed")
		transcript.Status = models.StatusFailed
		transcript.Error = err.Error()
	}

	transcript.UpdatedAt = time.Now()

	// The extraction context may already be expired; the result must still be
	// persisted or the row stays processing forever.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer saveCancel()

	if err := s.repo.Save(saveCtx, transcript); err != nil {
		logger.WithError(err).Error("Failed to save extraction result")
		return
	}

	logger.WithFields(logrus.Fields{
		"status": transcript.Status,
		"source": transcript.Source,
		"length": len(transcript.Text),
	}).Info("Saved extraction result")

	if transcript.IsCompleted() && s.archiver != nil {
		if err := s.archiver.SaveTranscript(saveCtx, transcript); err != nil {
			// Archive is write-through best effort; the SQLite row is canonical.
			logger.WithError(err).Warn("Failed to archive transcript")
		}
	}
}

func (s *service) extract(ctx context.Context, transcript *models.Transcript, logger *logrus.Entry) error {
	meta, err := s.extractor.Metadata(ctx, transcript.URL)
	if err != nil {
		return fmt.Errorf("metadata extraction failed: %w", err)
	}

	transcript.Title = meta.Title
	if meta.ID != "" {
		transcript.VideoID = meta.ID
	}

	if s.config.MaxDuration > 0 && meta.Duration > s.config.MaxDuration.Seconds() {
		return fmt.Errorf("video duration %.0fs exceeds limit of %s", meta.Duration, s.config.MaxDuration)
	}

	track, auto, ok := meta.SelectTrack(transcript.Language)
	if !ok {
		logger.Info("No subtitle track in requested language")
		transcript.Status = models.StatusCompleted
		transcript.Source = models.SourceNone
		transcript.Text = noSubtitlesMessage
		return nil
	}

	text, err := s.fetchText(ctx, transcript, track, auto, logger)
	if err != nil {
		return err
	}

	transcript.Status = models.StatusCompleted
	transcript.Text = text
	if auto {
		transcript.Source = models.SourceAuto
	} else {
		transcript.Source = models.SourceUploaded
	}
	return nil
}

// fetchText fetches the track payload directly over HTTP and falls back to a
// yt-dlp download when the direct fetch fails or yields an unparsable body.
func (s *service) fetchText(
	ctx context.Context,
	transcript *models.Transcript,
	track ytdlp.Track,
	auto bool,
	logger *logrus.Entry,
) (string, error) {
	data, err := s.extractor.FetchTrack(ctx, track)
	if err == nil {
		if segments, perr := subtitle.ParseJSON3(data); perr == nil {
			return subtitle.Text(segments), nil
		} else {
			logger.WithError(perr).Warn("Direct track payload unparsable, falling back to yt-dlp download")
		}
	} else {
		logger.WithError(err).Warn("Direct track fetch failed, falling back to yt-dlp download")
	}

	data, err = s.extractor.DownloadSubtitle(ctx, transcript.URL, transcript.Language, auto)
	if err != nil {
		return "", fmt.Errorf("subtitle download failed: %w", err)
	}

	segments, err := subtitle.ParseJSON3(data)
	if err != nil {
		return "", fmt.Errorf("subtitle parse failed: %w", err)
	}

	return subtitle.Text(segments), nil
}
