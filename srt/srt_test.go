package srt

import (
	"math"
	"testing"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{
			name: "zero",
			in:   "00:00:00,000",
			want: 0,
		},
		{
			name: "with milliseconds",
			in:   "00:01:23,456",
			want: 83.456,
		},
		{
			name: "without milliseconds",
			in:   "01:02:03",
			want: 3723,
		},
		{
			name: "range separator keeps start only",
			in:   "00:00:01,910 --> 00:00:03,610",
			want: 1.910,
		},
		{
			name:    "garbage",
			in:      "not a timestamp",
			want:    0,
			wantErr: true,
		},
		{
			name:    "too few fields",
			in:      "01:23",
			want:    0,
			wantErr: true,
		},
		{
			name:    "non-numeric seconds",
			in:      "00:00:xx",
			want:    0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTimestamp() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if math.Abs(got-tt.want) > 0.0005 {
				t.Errorf("ParseTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"zero", 0, "00:00:00,000"},
		{"sub-millisecond truncated", 1.2345, "00:00:01,234"},
		{"minutes and hours", 3723.5, "01:02:03,500"},
		{"negative clamped", -5, "00:00:00,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimestamp(tt.in); got != tt.want {
				t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	// millisecond granularity across the < 100h range
	for _, sec := range []float64{0, 0.001, 1.5, 59.999, 60, 3599.123, 3600, 86399.999, 359999.999} {
		got, err := ParseTimestamp(FormatTimestamp(sec))
		if err != nil {
			t.Fatalf("round trip of %v failed: %v", sec, err)
		}
		if math.Abs(got-sec) > 0.001 {
			t.Errorf("round trip of %v = %v", sec, got)
		}
	}
}

func TestParseSRT(t *testing.T) {
	srtData := `1
00:00:00,000 --> 00:00:01,830
I'm happy to
have you here today.

2
00:00:01,910 --> 00:00:03,610
As I'm sure you're all aware

3
xx:yy:zz --> 00:00:05,000
this cue survives with start 0
`

	cues := ParseSRT(srtData)
	if len(cues) != 3 {
		t.Fatalf("ParseSRT() got %d cues, want 3", len(cues))
	}
	if cues[0].Text != "I'm happy to have you here today." {
		t.Errorf("multi-line text not joined: %q", cues[0].Text)
	}
	if cues[0].Start != 0 || math.Abs(cues[0].Duration-1.83) > 0.001 {
		t.Errorf("cue 0 timing = (%v, %v)", cues[0].Start, cues[0].Duration)
	}
	if math.Abs(cues[1].Start-1.91) > 0.001 {
		t.Errorf("cue 1 start = %v", cues[1].Start)
	}
	if cues[2].Start != 0 {
		t.Errorf("malformed timestamp should default to 0, got %v", cues[2].Start)
	}
}

func TestParseSRTEmpty(t *testing.T) {
	if cues := ParseSRT(""); len(cues) != 0 {
		t.Errorf("empty input produced %d cues", len(cues))
	}
}

func TestFormatSRTRoundTrip(t *testing.T) {
	in := []Cue{
		{Start: 0, Duration: 1.83, Text: "first cue"},
		{Start: 1.91, Duration: 1.7, Text: "second cue"},
	}
	out := ParseSRT(FormatSRT(in))
	if len(out) != len(in) {
		t.Fatalf("round trip got %d cues, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Text != in[i].Text {
			t.Errorf("cue %d text = %q, want %q", i, out[i].Text, in[i].Text)
		}
		if math.Abs(out[i].Start-in[i].Start) > 0.001 {
			t.Errorf("cue %d start = %v, want %v", i, out[i].Start, in[i].Start)
		}
	}
}
