// Package subtitle parses YouTube caption payloads in the json3 format.
package subtitle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Segment is a single timed caption line.
type Segment struct {
	StartMS    int64  `json:"start_ms"`
	DurationMS int64  `json:"duration_ms"`
	Text       string `json:"text"`
}

type json3Doc struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	StartMS    int64      `json:"tStartMs"`
	DurationMS int64      `json:"dDurationMs"`
	Segs       []json3Seg `json:"segs"`
}

type json3Seg struct {
	UTF8 string `json:"utf8"`
}

// ParseJSON3 decodes a json3 caption document into timed segments.
//
// Track payloads fetched through yt-dlp occasionally carry log noise ahead of
// the JSON body, so decoding starts at the first '{'.
func ParseJSON3(data []byte) ([]Segment, error) {
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in caption payload")
	}

	var doc json3Doc
	if err := json.Unmarshal(data[start:], &doc); err != nil {
		return nil, fmt.Errorf("failed to parse json3 captions: %w", err)
	}

	segments := make([]Segment, 0, len(doc.Events))
	for _, event := range doc.Events {
		if len(event.Segs) == 0 {
			continue
		}

		var b strings.Builder
		for _, seg := range event.Segs {
			b.WriteString(seg.UTF8)
		}

		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}

		segments = append(segments, Segment{
			StartMS:    event.StartMS,
			DurationMS: event.DurationMS,
			Text:       text,
		})
	}

	return segments, nil
}

// Text flattens segments into plain text, one space between caption lines.
func Text(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, strings.Join(strings.Fields(s.Text), " "))
	}
	return strings.Join(parts, " ")
}
