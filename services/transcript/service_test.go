package transcript

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jaehk/yt-subtitle-analyzer/config"
	"github.com/jaehk/yt-subtitle-analyzer/errors"
	"github.com/jaehk/yt-subtitle-analyzer/models"
	"github.com/jaehk/yt-subtitle-analyzer/validation"
	"github.com/jaehk/yt-subtitle-analyzer/ytdlp"
)

type memRepo struct {
	mu      sync.Mutex
	records map[string]*models.Transcript
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*models.Transcript)}
}

func (r *memRepo) Save(ctx context.Context, t *models.Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.records[t.ID] = &cp
	return nil
}

func (r *memRepo) Find(ctx context.Context, id string) (*models.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.records[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, errors.NotFound("memRepo.Find", nil, "not found")
}

func (r *memRepo) FindByURL(ctx context.Context, url, language string) (*models.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.records {
		if t.URL == url && t.Language == language {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errors.NotFound("memRepo.FindByURL", nil, "not found")
}

type fakeExtractor struct {
	meta        *ytdlp.Metadata
	metaErr     error
	trackBody   []byte
	trackErr    error
	downloaded  []byte
	downloadErr error
	fetchCalls  int
	dlCalls     int
}

func (f *fakeExtractor) Metadata(ctx context.Context, url string) (*ytdlp.Metadata, error) {
	return f.meta, f.metaErr
}

func (f *fakeExtractor) FetchTrack(ctx context.Context, track ytdlp.Track) ([]byte, error) {
	f.fetchCalls++
	return f.trackBody, f.trackErr
}

func (f *fakeExtractor) DownloadSubtitle(ctx context.Context, url, lang string, auto bool) ([]byte, error) {
	f.dlCalls++
	return f.downloaded, f.downloadErr
}

// ctxRepo refuses writes once the context is done, as the SQLite statements do.
type ctxRepo struct {
	*memRepo
}

func (r *ctxRepo) Save(ctx context.Context, t *models.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.memRepo.Save(ctx, t)
}

// blockingExtractor stalls until the extraction context expires.
type blockingExtractor struct {
	fakeExtractor
}

func (b *blockingExtractor) Metadata(ctx context.Context, url string) (*ytdlp.Metadata, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeArchiver struct {
	mu     sync.Mutex
	saved  []*models.Transcript
	stored map[string]*models.Transcript
}

func newFakeArchiver() *fakeArchiver {
	return &fakeArchiver{stored: make(map[string]*models.Transcript)}
}

func (a *fakeArchiver) SaveTranscript(ctx context.Context, t *models.Transcript) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *t
	a.saved = append(a.saved, &cp)
	return nil
}

func (a *fakeArchiver) GetTranscript(ctx context.Context, videoID, language string) (*models.Transcript, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.stored[videoID+"."+language]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("archive object not found")
}

func (a *fakeArchiver) savedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.saved)
}

const captionPayload = `{"events": [{"tStartMs": 0, "dDurationMs": 1000, "segs": [{"utf8": "hello"}, {"utf8": " world"}]}]}`

func newTestService(repo Repository, ex Extractor) Service {
	return NewService(repo, ex, validation.NewValidator(&config.Config{}), nil, Config{
		ProcessTimeout:  5 * time.Second,
		DefaultLanguage: "ko",
	})
}

func waitForDone(t *testing.T, repo Repository, id string) *models.Transcript {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		tr, err := repo.Find(context.Background(), id)
		if err == nil && !tr.IsProcessing() {
			return tr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("extraction did not finish in time")
	return nil
}

func TestAnalyzeUploadedSubtitles(t *testing.T) {
	repo := newMemRepo()
	ex := &fakeExtractor{
		meta: &ytdlp.Metadata{
			ID:    "vStJoetOxJg",
			Title: "sample video",
			Subtitles: map[string][]ytdlp.Track{
				"ko": {{URL: "https://example.com/t.json3", Ext: "json3"}},
			},
		},
		trackBody: []byte(captionPayload),
	}
	svc := newTestService(repo, ex)

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=vStJoetOxJg", "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !tr.IsProcessing() {
		t.Errorf("expected processing status, got %q", tr.Status)
	}

	done := waitForDone(t, repo, tr.ID)
	if !done.IsCompleted() {
		t.Fatalf("expected completed, got %q (error: %s)", done.Status, done.Error)
	}
	if done.Source != models.SourceUploaded {
		t.Errorf("expected uploaded source, got %q", done.Source)
	}
	if done.Text != "hello world" {
		t.Errorf("unexpected text %q", done.Text)
	}
	if done.Title != "sample video" {
		t.Errorf("unexpected title %q", done.Title)
	}
	if done.VideoID != "vStJoetOxJg" {
		t.Errorf("unexpected video id %q", done.VideoID)
	}
}

func TestAnalyzeAutoCaptionFallback(t *testing.T) {
	repo := newMemRepo()
	ex := &fakeExtractor{
		meta: &ytdlp.Metadata{
			ID: "abc",
			AutomaticCaptions: map[string][]ytdlp.Track{
				"ko": {{URL: "https://example.com/a.json3", Ext: "json3"}},
			},
		},
		trackBody: []byte(captionPayload),
	}
	svc := newTestService(repo, ex)

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc", "")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if tr.Language != "ko" {
		t.Errorf("expected default language ko, got %q", tr.Language)
	}

	done := waitForDone(t, repo, tr.ID)
	if done.Source != models.SourceAuto {
		t.Errorf("expected auto source, got %q", done.Source)
	}
}

func TestAnalyzeNoSubtitles(t *testing.T) {
	repo := newMemRepo()
	ex := &fakeExtractor{meta: &ytdlp.Metadata{ID: "abc", Title: "no subs"}}
	svc := newTestService(repo, ex)

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc", "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	done := waitForDone(t, repo, tr.ID)
	if !done.IsCompleted() {
		t.Fatalf("missing subtitles must complete, got %q", done.Status)
	}
	if done.Source != models.SourceNone {
		t.Errorf("expected none source, got %q", done.Source)
	}
	if done.Text == "" {
		t.Error("expected explanatory message text")
	}
}

func TestAnalyzeDirectFetchFailureUsesDownload(t *testing.T) {
	repo := newMemRepo()
	ex := &fakeExtractor{
		meta: &ytdlp.Metadata{
			ID: "abc",
			Subtitles: map[string][]ytdlp.Track{
				"ko": {{URL: "https://example.com/t.json3", Ext: "json3"}},
			},
		},
		trackErr:   fmt.Errorf("fetch refused"),
		downloaded: []byte(captionPayload),
	}
	svc := newTestService(repo, ex)

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc", "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	done := waitForDone(t, repo, tr.ID)
	if !done.IsCompleted() {
		t.Fatalf("expected completed, got %q (error: %s)", done.Status, done.Error)
	}
	if ex.dlCalls == 0 {
		t.Error("expected download fallback to be used")
	}
	if done.Text != "hello world" {
		t.Errorf("unexpected text %q", done.Text)
	}
}

func TestAnalyzeMetadataFailure(t *testing.T) {
	repo := newMemRepo()
	ex := &fakeExtractor{metaErr: fmt.Errorf("yt-dlp exploded")}
	svc := newTestService(repo, ex)

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc", "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	done := waitForDone(t, repo, tr.ID)
	if !done.IsFailed() {
		t.Fatalf("expected failed, got %q", done.Status)
	}
	if done.Error == "" {
		t.Error("expected error message on failed record")
	}
}

func TestAnalyzeRejectsTooLongVideo(t *testing.T) {
	repo := newMemRepo()
	ex := &fakeExtractor{
		meta: &ytdlp.Metadata{ID: "abc", Duration: 7200},
	}
	svc := NewService(repo, ex, validation.NewValidator(&config.Config{}), nil, Config{
		ProcessTimeout:  5 * time.Second,
		MaxDuration:     time.Hour,
		DefaultLanguage: "ko",
	})

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc", "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	done := waitForDone(t, repo, tr.ID)
	if !done.IsFailed() {
		t.Fatalf("expected failed, got %q", done.Status)
	}
}

func TestAnalyzeReturnsCachedResult(t *testing.T) {
	repo := newMemRepo()
	existing := &models.Transcript{
		ID:        "cached",
		URL:       "https://www.youtube.com/watch?v=abc",
		Language:  "ko",
		Status:    models.StatusCompleted,
		Source:    models.SourceUploaded,
		Text:      "cached text",
		UpdatedAt: time.Now(),
	}
	repo.Save(context.Background(), existing)

	ex := &fakeExtractor{metaErr: fmt.Errorf("should not be called")}
	svc := newTestService(repo, ex)

	tr, err := svc.Analyze(context.Background(), existing.URL, "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if tr.ID != "cached" || tr.Text != "cached text" {
		t.Errorf("expected cached record, got %+v", tr)
	}
}

func TestAnalyzeRetriesFailedRecord(t *testing.T) {
	repo := newMemRepo()
	failed := &models.Transcript{
		ID:        "failed-one",
		URL:       "https://www.youtube.com/watch?v=abc",
		Language:  "ko",
		Status:    models.StatusFailed,
		Error:     "earlier failure",
		UpdatedAt: time.Now(),
	}
	repo.Save(context.Background(), failed)

	ex := &fakeExtractor{
		meta: &ytdlp.Metadata{
			ID: "abc",
			Subtitles: map[string][]ytdlp.Track{
				"ko": {{URL: "https://example.com/t.json3", Ext: "json3"}},
			},
		},
		trackBody: []byte(captionPayload),
	}
	svc := newTestService(repo, ex)

	tr, err := svc.Analyze(context.Background(), failed.URL, "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !tr.IsProcessing() {
		t.Errorf("failed record should be reprocessed, got %q", tr.Status)
	}

	done := waitForDone(t, repo, tr.ID)
	if !done.IsCompleted() {
		t.Errorf("expected completed after retry, got %q", done.Status)
	}
	if done.Error != "" {
		t.Errorf("error should be cleared, got %q", done.Error)
	}
}

func TestProcessTimeoutMarksFailed(t *testing.T) {
	repo := &ctxRepo{newMemRepo()}
	ex := &blockingExtractor{}
	svc := NewService(repo, ex, validation.NewValidator(&config.Config{}), nil, Config{
		ProcessTimeout:  50 * time.Millisecond,
		DefaultLanguage: "ko",
	})

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc", "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	done := waitForDone(t, repo, tr.ID)
	if !done.IsFailed() {
		t.Fatalf("timed-out extraction must end up failed, got %q", done.Status)
	}
	if done.Error == "" {
		t.Error("expected timeout error recorded on the record")
	}
}

func TestAnalyzeRestoresFromArchive(t *testing.T) {
	repo := newMemRepo()
	archiver := newFakeArchiver()
	archiver.stored["abc.ko"] = &models.Transcript{
		URL:      "https://www.youtube.com/watch?v=abc",
		VideoID:  "abc",
		Title:    "archived video",
		Language: "ko",
		Status:   models.StatusCompleted,
		Source:   models.SourceUploaded,
		Text:     "archived text",
	}

	ex := &fakeExtractor{metaErr: fmt.Errorf("should not be called")}
	svc := NewService(repo, ex, validation.NewValidator(&config.Config{}), archiver, Config{
		ProcessTimeout:  5 * time.Second,
		DefaultLanguage: "ko",
	})

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc", "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !tr.IsCompleted() {
		t.Fatalf("expected completed archived record, got %q", tr.Status)
	}
	if tr.Text != "archived text" {
		t.Errorf("unexpected text %q", tr.Text)
	}

	// The restored record must be cached for subsequent lookups.
	if _, err := repo.Find(context.Background(), tr.ID); err != nil {
		t.Errorf("restored record not cached: %v", err)
	}
}

func TestCompletedResultIsArchived(t *testing.T) {
	repo := newMemRepo()
	archiver := newFakeArchiver()
	ex := &fakeExtractor{
		meta: &ytdlp.Metadata{
			ID: "abc",
			Subtitles: map[string][]ytdlp.Track{
				"ko": {{URL: "https://example.com/t.json3", Ext: "json3"}},
			},
		},
		trackBody: []byte(captionPayload),
	}
	svc := NewService(repo, ex, validation.NewValidator(&config.Config{}), archiver, Config{
		ProcessTimeout:  5 * time.Second,
		DefaultLanguage: "ko",
	})

	tr, err := svc.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc", "ko")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	waitForDone(t, repo, tr.ID)

	deadline := time.Now().Add(time.Second)
	for archiver.savedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if archiver.savedCount() != 1 {
		t.Fatalf("expected one archived transcript, got %d", archiver.savedCount())
	}
}

func TestAnalyzeRejectsInvalidURL(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeExtractor{})

	if _, err := svc.Analyze(context.Background(), "https://vimeo.com/123", "ko"); !errors.IsInvalidInput(err) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestGetRequiresID(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeExtractor{})

	if _, err := svc.Get(context.Background(), ""); !errors.IsInvalidInput(err) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}
