package repository

import (
	"context"

	"github.com/jaehk/yt-subtitle-analyzer/models"
)

type TranscriptRepository interface {
	Save(ctx context.Context, transcript *models.Transcript) error
	Find(ctx context.Context, id string) (*models.Transcript, error)
	FindByURL(ctx context.Context, url, language string) (*models.Transcript, error)
}
