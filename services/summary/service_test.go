package summary

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jaehk/yt-subtitle-analyzer/errors"
	"github.com/jaehk/yt-subtitle-analyzer/models"
)

type stubRepo struct {
	records map[string]*models.Transcript
	saved   *models.Transcript
}

func (r *stubRepo) Save(ctx context.Context, t *models.Transcript) error {
	r.saved = t
	r.records[t.ID] = t
	return nil
}

func (r *stubRepo) Find(ctx context.Context, id string) (*models.Transcript, error) {
	if t, ok := r.records[id]; ok {
		return t, nil
	}
	return nil, errors.NotFound("stubRepo.Find", nil, "not found")
}

func (r *stubRepo) FindByURL(ctx context.Context, url, language string) (*models.Transcript, error) {
	return nil, errors.NotFound("stubRepo.FindByURL", nil, "not found")
}

type stubGenerator struct {
	calls     int
	responses []string
	err       error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	resp := g.responses[g.calls%len(g.responses)]
	g.calls++
	return resp, nil
}

func completedTranscript(id, text string) *models.Transcript {
	return &models.Transcript{
		ID:        id,
		URL:       "https://www.youtube.com/watch?v=" + id,
		Language:  "ko",
		Status:    models.StatusCompleted,
		Source:    models.SourceUploaded,
		Text:      text,
		UpdatedAt: time.Now(),
	}
}

func TestSummarize(t *testing.T) {
	repo := &stubRepo{records: map[string]*models.Transcript{
		"t1": completedTranscript("t1", "some subtitle text"),
	}}
	gen := &stubGenerator{responses: []string{"a concise summary"}}
	svc := NewService(repo, gen, Config{Model: "gemini-2.5-flash"})

	tr, err := svc.Summarize(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if tr.Summary != "a concise summary" {
		t.Errorf("unexpected summary %q", tr.Summary)
	}
	if gen.calls != 1 {
		t.Errorf("expected one generation call, got %d", gen.calls)
	}
	if repo.saved == nil || repo.saved.Summary != tr.Summary {
		t.Error("summary was not persisted")
	}
}

func TestSummarizeChunksLongText(t *testing.T) {
	long := strings.Repeat("word ", 500)
	repo := &stubRepo{records: map[string]*models.Transcript{
		"t1": completedTranscript("t1", long),
	}}
	gen := &stubGenerator{responses: []string{"part summary", "combined summary"}}
	svc := NewService(repo, gen, Config{Model: "gemini-2.5-flash", ChunkSize: 600})

	tr, err := svc.Summarize(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	// Multiple chunk calls plus one combine call.
	if gen.calls < 3 {
		t.Errorf("expected chunked generation, got %d calls", gen.calls)
	}
	if tr.Summary == "" {
		t.Error("expected a combined summary")
	}
}

func TestSplitTextKeepsRuneBoundaries(t *testing.T) {
	svc := &service{config: Config{ChunkSize: 10}}

	// Unspaced Korean text; each rune is three bytes.
	text := strings.Repeat("한", 50)
	chunks := svc.splitText(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var runes int
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, chunk)
		}
		if len(chunk) > 10 {
			t.Errorf("chunk %d exceeds size limit: %d bytes", i, len(chunk))
		}
		runes += utf8.RuneCountInString(chunk)
	}
	if runes != 50 {
		t.Errorf("expected 50 runes across chunks, got %d", runes)
	}
}

func TestSummarizeReturnsStoredSummary(t *testing.T) {
	tr := completedTranscript("t1", "text")
	tr.Summary = "already summarized"
	repo := &stubRepo{records: map[string]*models.Transcript{"t1": tr}}
	gen := &stubGenerator{responses: []string{"should not be used"}}
	svc := NewService(repo, gen, Config{})

	got, err := svc.Summarize(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got.Summary != "already summarized" {
		t.Errorf("unexpected summary %q", got.Summary)
	}
	if gen.calls != 0 {
		t.Errorf("generator should not be called, got %d calls", gen.calls)
	}
}

func TestSummarizeValidation(t *testing.T) {
	processing := completedTranscript("p1", "text")
	processing.Status = models.StatusProcessing

	noText := completedTranscript("n1", "message")
	noText.Source = models.SourceNone

	repo := &stubRepo{records: map[string]*models.Transcript{
		"p1": processing,
		"n1": noText,
	}}
	svc := NewService(repo, &stubGenerator{responses: []string{"x"}}, Config{})

	tests := []struct {
		name string
		id   string
	}{
		{"empty id", ""},
		{"still processing", "p1"},
		{"no subtitle text", "n1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Summarize(context.Background(), tt.id); !errors.IsInvalidInput(err) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestSummarizeMissingTranscript(t *testing.T) {
	repo := &stubRepo{records: map[string]*models.Transcript{}}
	svc := NewService(repo, &stubGenerator{responses: []string{"x"}}, Config{})

	if _, err := svc.Summarize(context.Background(), "ghost"); !errors.IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestSummarizeGeneratorFailure(t *testing.T) {
	repo := &stubRepo{records: map[string]*models.Transcript{
		"t1": completedTranscript("t1", "text"),
	}}
	svc := NewService(repo, &stubGenerator{err: fmt.Errorf("quota blown")}, Config{})

	if _, err := svc.Summarize(context.Background(), "t1"); err == nil {
		t.Error("expected error from generator failure")
	}
}
