// Package segment turns caption cues and PDF page text into the flat
// list of retrievable segments the rest of the pipeline works with.
package segment

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"vidsearch/srt"
	"vidsearch/types"
)

// Options selects the segmentation strategy. Window <= 1 emits one
// segment per cue; Window > 1 joins Window cues advancing by Stride,
// producing overlapping, context-rich segments.
type Options struct {
	Window int
	Stride int
}

// FromCues maps the ordered cue list of one video to segments. Ids are
// derived from the video id and the formatted start offset, so
// re-processing the same video yields the same ids.
func FromCues(videoID string, cues []srt.Cue, opts Options) []types.Segment {
	if opts.Window > 1 {
		return windowed(videoID, cues, opts.Window, opts.Stride)
	}

	var segments []types.Segment
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		segments = append(segments, newVideoSegment(videoID, cue.Start, text))
	}
	return segments
}

func windowed(videoID string, cues []srt.Cue, window, stride int) []types.Segment {
	if stride < 1 {
		stride = window
	}

	var segments []types.Segment
	for i := 0; i < len(cues); i += stride {
		end := i + window
		if end > len(cues) {
			end = len(cues)
		}

		parts := make([]string, 0, end-i)
		for _, cue := range cues[i:end] {
			if t := strings.TrimSpace(cue.Text); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) == 0 {
			continue
		}
		segments = append(segments, newVideoSegment(videoID, cues[i].Start, strings.Join(parts, " ")))
	}
	return segments
}

func newVideoSegment(videoID string, start float64, text string) types.Segment {
	return types.Segment{
		ID:         fmt.Sprintf("%s-t%s", videoID, srt.FormatTimestamp(start)),
		SourceType: types.SourceVideo,
		VideoID:    videoID,
		Start:      start,
		Text:       text,
		URL:        fmt.Sprintf("https://www.youtube.com/watch?v=%s&t=%d", videoID, int(start)),
	}
}

// FromPages splits per-page plain text into contiguous fixed-size
// character chunks; the last chunk of a page may be shorter. Pages are
// numbered from 1, chunks from 0.
func FromPages(pdfID, name string, pages []string, chunkSize int) []types.Segment {
	if chunkSize <= 0 {
		chunkSize = 512
	}

	var segments []types.Segment
	for p, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		pageNum := p + 1

		runes := []rune(page)
		for c := 0; c*chunkSize < len(runes); c++ {
			end := (c + 1) * chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			text := strings.TrimSpace(string(runes[c*chunkSize : end]))
			if text == "" {
				continue
			}
			segments = append(segments, types.Segment{
				ID:          fmt.Sprintf("%s-p%d-c%d", pdfID, pageNum, c),
				SourceType:  types.SourcePDF,
				PDFID:       pdfID,
				PDFName:     name,
				PageNumber:  pageNum,
				ChunkNumber: c,
				Text:        text,
				Citation:    fmt.Sprintf("PDF: %s, page %d", name, pageNum),
			})
		}
	}
	return segments
}

// PDFID hashes the document bytes, so re-uploading identical content
// maps to the same id.
func PDFID(b []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

// CollectionName sanitizes a channel URL into an index-safe
// identifier: scheme and "www." stripped, lowercased, every character
// outside [a-z0-9-] replaced with '-', "idx-" prefixed when the
// result is not letter-leading, truncated to 62 characters.
func CollectionName(channelURL string) string {
	s := strings.ToLower(strings.TrimSpace(channelURL))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimSuffix(s, "/")

	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('-')
		}
	}

	name := sb.String()
	if name == "" || name[0] < 'a' || name[0] > 'z' {
		name = "idx-" + name
	}
	if len(name) > 62 {
		name = name[:62]
	}
	return strings.TrimSuffix(name, "-")
}
