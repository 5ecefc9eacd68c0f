// Package ytdlp wraps the yt-dlp executable for metadata extraction and
// caption track downloads.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Path to the yt-dlp executable. A bare name is resolved from PATH.
	Path string
	// TempDir holds per-job subtitle downloads.
	TempDir string
	// FetchTimeout bounds direct HTTP track fetches.
	FetchTimeout time.Duration
}

// Track is one caption track variant as reported by yt-dlp.
type Track struct {
	URL  string `json:"url"`
	Ext  string `json:"ext"`
	Name string `json:"name"`
}

// Metadata is the subset of yt-dlp --dump-json output the service needs.
type Metadata struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Duration          float64            `json:"duration"`
	Subtitles         map[string][]Track `json:"subtitles"`
	AutomaticCaptions map[string][]Track `json:"automatic_captions"`
}

// SelectTrack picks the caption track for lang. Uploader tracks win over
// automatic captions. The json3 variant is preferred; otherwise the first
// track is taken and the fetch rewrites the format query parameter.
func (m *Metadata) SelectTrack(lang string) (Track, bool, bool) {
	if tracks, ok := m.Subtitles[lang]; ok && len(tracks) > 0 {
		return pickJSON3(tracks), false, true
	}
	if tracks, ok := m.AutomaticCaptions[lang]; ok && len(tracks) > 0 {
		return pickJSON3(tracks), true, true
	}
	return Track{}, false, false
}

func pickJSON3(tracks []Track) Track {
	for _, t := range tracks {
		if t.Ext == "json3" {
			return t
		}
	}
	return tracks[0]
}

type Runner struct {
	config Config
	client *http.Client
	logger *logrus.Logger
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("yt-dlp path is required")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create temp directory")
		}
	}

	return &Runner{
		config: cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		logger: logrus.StandardLogger(),
	}, nil
}

// Metadata runs yt-dlp against url and decodes the single-line JSON dump.
func (r *Runner) Metadata(ctx context.Context, videoURL string) (*Metadata, error) {
	output, err := r.run(ctx,
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		videoURL,
	)
	if err != nil {
		return nil, err
	}

	// yt-dlp may emit progress lines before the JSON document.
	start := bytes.IndexByte(output, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON in yt-dlp output")
	}

	var meta Metadata
	if err := json.Unmarshal(output[start:], &meta); err != nil {
		return nil, errors.Wrap(err, "failed to parse yt-dlp metadata")
	}

	return &meta, nil
}

// FetchTrack retrieves a caption track payload over HTTP. The track URL is
// rewritten to request json3 when the listed variant is something else.
func (r *Runner) FetchTrack(ctx context.Context, track Track) ([]byte, error) {
	trackURL := track.URL
	if track.Ext != "json3" {
		rewritten, err := withFormat(trackURL, "json3")
		if err != nil {
			return nil, errors.Wrap(err, "invalid track URL")
		}
		trackURL = rewritten
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build track request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "track fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("track fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read track body")
	}

	return body, nil
}

// DownloadSubtitle is the fallback path: let yt-dlp write the caption file
// into a per-job temp dir and read it back. auto selects ASR captions.
func (r *Runner) DownloadSubtitle(ctx context.Context, videoURL, lang string, auto bool) ([]byte, error) {
	dir, err := os.MkdirTemp(r.config.TempDir, "subs-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create job directory")
	}
	defer os.RemoveAll(dir)

	subFlag := "--write-subs"
	if auto {
		subFlag = "--write-auto-subs"
	}

	_, err = r.run(ctx,
		"--skip-download",
		subFlag,
		"--sub-langs", lang,
		"--sub-format", "json3",
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		videoURL,
	)
	if err != nil {
		return nil, err
	}

	path, err := findSubtitleFile(dir, lang)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read subtitle file")
	}

	return data, nil
}

func findSubtitleFile(dir, lang string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to list job directory")
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".json3") && strings.Contains(name, "."+lang) {
			return filepath.Join(dir, name), nil
		}
	}

	return "", fmt.Errorf("no %s subtitle file produced", lang)
}

func (r *Runner) run(ctx context.Context, args ...string) ([]byte, error) {
	r.logger.WithFields(logrus.Fields{
		"command": r.config.Path,
		"args":    args,
	}).Debug("Executing yt-dlp")

	cmd := exec.CommandContext(ctx, r.config.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrOutput := strings.TrimSpace(stderr.String())
		r.logger.WithFields(logrus.Fields{
			"error":  err,
			"stderr": stderrOutput,
		}).Error("yt-dlp execution failed")
		if stderrOutput != "" {
			return nil, fmt.Errorf("yt-dlp failed: %w (stderr: %s)", err, stderrOutput)
		}
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}

	return stdout.Bytes(), nil
}

func withFormat(rawURL, format string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("fmt", format)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
