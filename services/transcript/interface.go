package transcript

import (
	"context"
	"time"

	"github.com/jaehk/yt-subtitle-analyzer/models"
	"github.com/jaehk/yt-subtitle-analyzer/ytdlp"
)

type Service interface {
	// Analyze initiates a new extraction or returns the existing record.
	Analyze(ctx context.Context, url, language string) (*models.Transcript, error)

	// Get retrieves a transcript by ID.
	Get(ctx context.Context, id string) (*models.Transcript, error)

	// GetByURL retrieves a transcript by URL and language.
	GetByURL(ctx context.Context, url, language string) (*models.Transcript, error)
}

// Extractor is the yt-dlp surface the service depends on.
type Extractor interface {
	Metadata(ctx context.Context, url string) (*ytdlp.Metadata, error)
	FetchTrack(ctx context.Context, track ytdlp.Track) ([]byte, error)
	DownloadSubtitle(ctx context.Context, url, lang string, auto bool) ([]byte, error)
}

// Archiver mirrors completed transcripts to object storage.
type Archiver interface {
	SaveTranscript(ctx context.Context, transcript *models.Transcript) error
	GetTranscript(ctx context.Context, videoID, language string) (*models.Transcript, error)
}

type Config struct {
	// ProcessTimeout is the maximum time allowed for a single extraction.
	ProcessTimeout time.Duration `json:"process_timeout"`

	// MaxDuration rejects videos longer than this. Zero disables the check.
	MaxDuration time.Duration `json:"max_duration"`

	// DefaultLanguage is used when a request does not name one.
	DefaultLanguage string `json:"default_language"`
}
