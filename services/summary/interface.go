package summary

import (
	"context"

	"github.com/jaehk/yt-subtitle-analyzer/models"
)

type Service interface {
	// Summarize analyzes a completed transcript and stores the summary.
	Summarize(ctx context.Context, id string) (*models.Transcript, error)
}

// Generator produces text for a prompt. Implemented by the Gemini client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	// Model name used for bookkeeping and logging.
	Model string `json:"model"`

	// ChunkSize is the character budget per generation call.
	ChunkSize int `json:"chunk_size"`
}
