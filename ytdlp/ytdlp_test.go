package ytdlp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSelectTrack(t *testing.T) {
	meta := &Metadata{
		ID:    "abc123def45",
		Title: "sample",
		Subtitles: map[string][]Track{
			"ko": {
				{URL: "https://example.com/ko.vtt", Ext: "vtt"},
				{URL: "https://example.com/ko.json3", Ext: "json3"},
			},
		},
		AutomaticCaptions: map[string][]Track{
			"ko": {{URL: "https://example.com/ko.auto.json3", Ext: "json3"}},
			"en": {{URL: "https://example.com/en.auto.json3", Ext: "json3"}},
		},
	}

	t.Run("uploaded wins over auto", func(t *testing.T) {
		track, auto, ok := meta.SelectTrack("ko")
		if !ok {
			t.Fatal("expected a track")
		}
		if auto {
			t.Error("expected uploaded track, got auto")
		}
		if track.Ext != "json3" {
			t.Errorf("expected json3 variant, got %s", track.Ext)
		}
	})

	t.Run("auto fallback", func(t *testing.T) {
		track, auto, ok := meta.SelectTrack("en")
		if !ok {
			t.Fatal("expected a track")
		}
		if !auto {
			t.Error("expected auto track")
		}
		if track.URL != "https://example.com/en.auto.json3" {
			t.Errorf("unexpected track URL %s", track.URL)
		}
	})

	t.Run("missing language", func(t *testing.T) {
		if _, _, ok := meta.SelectTrack("ja"); ok {
			t.Error("expected no track for ja")
		}
	})
}

func TestSelectTrackNonJSON3Only(t *testing.T) {
	meta := &Metadata{
		Subtitles: map[string][]Track{
			"ko": {{URL: "https://example.com/ko.vtt", Ext: "vtt"}},
		},
	}
	track, _, ok := meta.SelectTrack("ko")
	if !ok {
		t.Fatal("expected a track")
	}
	if track.Ext != "vtt" {
		t.Errorf("expected the only track, got %s", track.Ext)
	}
}

func TestFetchTrack(t *testing.T) {
	const payload = `{"events": []}`

	var gotFmt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFmt = r.URL.Query().Get("fmt")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	r, err := NewRunner(Config{Path: "yt-dlp", FetchTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("json3 track fetched as-is", func(t *testing.T) {
		body, err := r.FetchTrack(context.Background(), Track{URL: srv.URL + "/track", Ext: "json3"})
		if err != nil {
			t.Fatalf("FetchTrack failed: %v", err)
		}
		if string(body) != payload {
			t.Errorf("unexpected body %q", body)
		}
		if gotFmt != "" {
			t.Errorf("json3 track should not be rewritten, got fmt=%s", gotFmt)
		}
	})

	t.Run("other formats rewritten to json3", func(t *testing.T) {
		if _, err := r.FetchTrack(context.Background(), Track{URL: srv.URL + "/track", Ext: "vtt"}); err != nil {
			t.Fatalf("FetchTrack failed: %v", err)
		}
		if gotFmt != "json3" {
			t.Errorf("expected fmt=json3, got %q", gotFmt)
		}
	})
}

func TestFetchTrackErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r, err := NewRunner(Config{Path: "yt-dlp"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.FetchTrack(context.Background(), Track{URL: srv.URL, Ext: "json3"}); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestNewRunnerRequiresPath(t *testing.T) {
	if _, err := NewRunner(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}
