// Package fetch pulls caption tracks and video listings from YouTube.
// The rest of the system only sees ordered cues; a video without
// captions is skipped, never fatal.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"vidsearch/srt"
)

// ErrNoCaptions marks a video with no usable caption track.
var ErrNoCaptions = errors.New("no captions available")

// CaptionSource is the collaborator interface the ingestion pipeline
// depends on.
type CaptionSource interface {
	ListVideos(ctx context.Context, channelURL string) ([]string, error)
	FetchCaptions(ctx context.Context, videoID string) ([]srt.Cue, error)
}

type YouTubeSource struct {
	client *http.Client
}

func NewYouTubeSource() *YouTubeSource {
	return &YouTubeSource{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

var videoIDPattern = regexp.MustCompile(`"videoId":"([A-Za-z0-9_-]{11})"`)

// ListVideos scrapes the channel page for video ids, first occurrence
// order preserved.
func (s *YouTubeSource) ListVideos(ctx context.Context, channelURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", channelURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching channel page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, m := range videoIDPattern.FindAllStringSubmatch(string(body), -1) {
		id := m[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// FetchCaptions downloads the English caption track in the json3
// timedtext format and converts it to cues.
func (s *YouTubeSource) FetchCaptions(ctx context.Context, videoID string) ([]srt.Cue, error) {
	u := fmt.Sprintf("https://video.google.com/timedtext?lang=en&v=%s&fmt=json3", url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching captions for %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoCaptions
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext returned status %d for %s", resp.StatusCode, videoID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		// YouTube answers 200 with an empty body for untracked videos
		return nil, ErrNoCaptions
	}

	cues, err := parseTimedText(body)
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, ErrNoCaptions
	}
	return cues, nil
}

type timedTextResponse struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func parseTimedText(data []byte) ([]srt.Cue, error) {
	var tt timedTextResponse
	if err := json.Unmarshal(data, &tt); err != nil {
		return nil, fmt.Errorf("decoding timedtext: %w", err)
	}

	var cues []srt.Cue
	for _, ev := range tt.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " "))
		if text == "" {
			continue
		}
		cues = append(cues, srt.Cue{
			Start:    float64(ev.StartMs) / 1000,
			Duration: float64(ev.DurationMs) / 1000,
			Text:     text,
		})
	}
	return cues, nil
}

// VideoID extracts the video id from the common URL shapes; a bare id
// passes through unchanged.
func VideoID(videoURL string) string {
	if u, err := url.Parse(videoURL); err == nil {
		if id := u.Query().Get("v"); id != "" {
			return id
		}
		if u.Host == "youtu.be" {
			return strings.TrimPrefix(u.Path, "/")
		}
	}
	if i := strings.LastIndex(videoURL, "v="); i >= 0 {
		id := videoURL[i+2:]
		if amp := strings.Index(id, "&"); amp >= 0 {
			id = id[:amp]
		}
		return id
	}
	return videoURL
}
