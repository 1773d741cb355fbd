// Package srt converts between subtitle-style timestamps and seconds,
// and parses raw SRT caption tracks into ordered cues.
package srt

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
)

// Cue is one caption entry: start offset in seconds, duration in
// seconds and the spoken text.
type Cue struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// ParseTimestamp converts "HH:MM:SS" or "HH:MM:SS,mmm" to seconds.
// If the string contains a "-->" range separator only the portion
// before it is parsed. Malformed input yields 0 and a non-nil error;
// callers log it and keep going, one bad cue never aborts a video.
func ParseTimestamp(s string) (float64, error) {
	if i := strings.Index(s, "-->"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp format: %q", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}

	sec := parts[2]
	ms := 0
	if comma := strings.Index(sec, ","); comma >= 0 {
		ms, err = strconv.Atoi(sec[comma+1:])
		if err != nil {
			return 0, fmt.Errorf("invalid milliseconds in %q", s)
		}
		sec = sec[:comma]
	}
	ss, err := strconv.Atoi(sec)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q", s)
	}

	return float64(h)*3600 + float64(m)*60 + float64(ss) + float64(ms)/1000, nil
}

// FormatTimestamp renders seconds as zero-padded "HH:MM:SS,mmm".
// The sub-millisecond remainder is truncated, not rounded, so
// ParseTimestamp(FormatTimestamp(x)) == x at millisecond precision.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	// small epsilon absorbs float error for exact-millisecond inputs
	total := int64(math.Floor(seconds*1000 + 1e-6))
	ms := total % 1000
	s := total / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", s/3600, (s%3600)/60, s%60, ms)
}

// ParseSRT splits a raw SRT track into cues. Blocks are separated by
// blank lines; the first line of a block is a sequence number, the
// second the "start --> end" range, the rest the text.
func ParseSRT(data string) []Cue {
	var cues []Cue

	blocks := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}

		// sequence numbers are optional in the wild
		tsLine := lines[1]
		textFrom := 2
		if strings.Contains(lines[0], "-->") {
			tsLine = lines[0]
			textFrom = 1
		}
		if !strings.Contains(tsLine, "-->") || textFrom >= len(lines) {
			continue
		}

		start, err := ParseTimestamp(tsLine)
		if err != nil {
			log.Printf("[SRT] bad timestamp, defaulting to 0: %v", err)
		}

		duration := 0.0
		bounds := strings.SplitN(tsLine, "-->", 2)
		if end, err := ParseTimestamp(bounds[1]); err == nil && end > start {
			duration = end - start
		}

		text := strings.TrimSpace(strings.Join(lines[textFrom:], " "))
		if text == "" {
			continue
		}

		cues = append(cues, Cue{Start: start, Duration: duration, Text: text})
	}
	return cues
}

// FormatSRT renders cues back into an SRT track. Used to synthesize
// caption files for sources that deliver plain (start, duration,
// text) tuples; round-trips with ParseSRT.
func FormatSRT(cues []Cue) string {
	var sb strings.Builder
	for i, cue := range cues {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("\n")
		sb.WriteString(FormatTimestamp(cue.Start))
		sb.WriteString(" --> ")
		sb.WriteString(FormatTimestamp(cue.Start + cue.Duration))
		sb.WriteString("\n")
		sb.WriteString(cue.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
