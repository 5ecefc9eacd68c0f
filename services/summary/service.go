package summary

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/jaehk/yt-subtitle-analyzer/errors"
	"github.com/jaehk/yt-subtitle-analyzer/models"
	"github.com/jaehk/yt-subtitle-analyzer/repository"
)

const chunkPrompt = `You are an expert at analyzing video content. Summarize the
core content of the following video subtitle excerpt. Explain the key concepts
and technologies it mentions, adding accurate supplementary information. Use
only official, verifiable information.

Subtitles:
---
%s
---`

const combinePrompt = `The following are partial summaries of one video's
subtitles, in order. Merge them into a single coherent summary of the video.
Keep the explanations of key concepts and technologies. Use only official,
verifiable information.

Partial summaries:
---
%s
---`

type service struct {
	repo      repository.TranscriptRepository
	generator Generator
	config    Config
	logger    *logrus.Logger
}

func NewService(repo repository.TranscriptRepository, generator Generator, config Config) Service {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 24000
	}
	return &service{
		repo:      repo,
		generator: generator,
		config:    config,
		logger:    logrus.StandardLogger(),
	}
}

func (s *service) Summarize(ctx context.Context, id string) (*models.Transcript, error) {
	const op = "SummaryService.Summarize"
	logger := s.logger.WithField("transcript_id", id)

	if id == "" {
		return nil, errors.InvalidInput(op, nil, "ID is required")
	}

	transcript, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(op, err, "Transcript not found")
		}
		return nil, errors.Internal(op, err, "Failed to get transcript")
	}

	if !transcript.IsCompleted() {
		return nil, errors.InvalidInput(op, nil, "Transcript extraction has not completed")
	}
	if transcript.Source == models.SourceNone || transcript.Text == "" {
		return nil, errors.InvalidInput(op, nil, "Transcript has no subtitle text to analyze")
	}

	// Serve the stored summary when present.
	if transcript.Summary != "" {
		return transcript, nil
	}

	chunks := s.splitText(transcript.Text)
	summaries := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return nil, errors.Internal(op, ctx.Err(), "Summary creation cancelled")
		default:
		}

		logger.WithFields(logrus.Fields{
			"chunk": i + 1,
			"total": len(chunks),
		}).Debug("Summarizing chunk")

		text, err := s.generator.Generate(ctx, fmt.Sprintf(chunkPrompt, chunk))
		if err != nil {
			return nil, errors.Unavailable(op, err, "Failed to summarize transcript")
		}
		summaries = append(summaries, strings.TrimSpace(text))
	}

	finalSummary := summaries[0]
	if len(summaries) > 1 {
		combined, err := s.generator.Generate(ctx, fmt.Sprintf(combinePrompt, strings.Join(summaries, "\n\n")))
		if err != nil {
			return nil, errors.Unavailable(op, err, "Failed to combine summaries")
		}
		finalSummary = strings.TrimSpace(combined)
	}

	transcript.Summary = finalSummary
	transcript.UpdatedAt = time.Now()

	if err := s.repo.Save(ctx, transcript); err != nil {
		return nil, errors.Internal(op, err, "Failed to save summary")
	}

	logger.WithField("summary_length", len(finalSummary)).Info("Summary created")
	return transcript, nil
}

// splitText cuts the transcript into chunks of at most ChunkSize characters,
// breaking on whitespace where possible.
func (s *service) splitText(text string) []string {
	if len(text) <= s.config.ChunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > s.config.ChunkSize {
		cut := s.config.ChunkSize
		if i := strings.LastIndexByte(text[:cut], ' '); i > 0 {
			cut = i
		} else {
			// Unspaced text (common for CJK); back off to a rune boundary.
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = s.config.ChunkSize
			}
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
