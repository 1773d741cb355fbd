package pdf

import "testing"

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "simple Tj",
			content: "BT /F1 12 Tf 72 712 Td (Hello world) Tj ET",
			want:    "Hello world",
		},
		{
			name:    "TJ array with kerning",
			content: "BT [(Ma) -250 (ple)] TJ ET",
			want:    "Maple",
		},
		{
			name:    "escaped parens",
			content: `BT (syrup \(grade A\)) Tj ET`,
			want:    "syrup (grade A)",
		},
		{
			name:    "multiple show operators",
			content: "BT (first) Tj 0 -14 Td (second) Tj ET",
			want:    "first second",
		},
		{
			name:    "octal escape",
			content: `BT (caf\351) Tj ET`,
			want:    "caf\351",
		},
		{
			name:    "no text",
			content: "q 1 0 0 1 0 0 cm Q",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeText([]byte(tt.content)); got != tt.want {
				t.Errorf("decodeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractPagesRejectsGarbage(t *testing.T) {
	if _, err := ExtractPages([]byte("not a pdf")); err == nil {
		t.Error("garbage bytes should not parse as a PDF")
	}
}
