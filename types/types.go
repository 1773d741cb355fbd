package types

type SourceType string

const (
	SourceVideo SourceType = "video"
	SourcePDF   SourceType = "pdf"
)

// Segment is one retrievable unit of text: a caption cue (or window of
// cues) from a video, or a fixed-size chunk of a PDF page.
type Segment struct {
	ID          string     `json:"id"`
	SourceType  SourceType `json:"source_type"`
	VideoID     string     `json:"video_id,omitempty"`
	PDFID       string     `json:"pdf_id,omitempty"`
	PDFName     string     `json:"pdf_name,omitempty"`
	Start       float64    `json:"start,omitempty"`
	PageNumber  int        `json:"page_number,omitempty"`
	ChunkNumber int        `json:"chunk_number,omitempty"`
	Text        string     `json:"text"`
	URL         string     `json:"url,omitempty"`
	Citation    string     `json:"citation,omitempty"`
	Embedding   []float32  `json:"embedding,omitempty"`
}

// SourceID identifies the parent source: video id for captions,
// content hash for PDFs.
func (s Segment) SourceID() string {
	if s.SourceType == SourcePDF {
		return s.PDFID
	}
	return s.VideoID
}

// Metadata flattens everything except the embedding, which lives in
// the vector column and would only be duplicated here.
func (s Segment) Metadata() map[string]any {
	m := map[string]any{
		"source_type": string(s.SourceType),
		"text":        s.Text,
	}
	switch s.SourceType {
	case SourcePDF:
		m["pdf_id"] = s.PDFID
		m["pdf_name"] = s.PDFName
		m["page_number"] = s.PageNumber
		m["chunk_number"] = s.ChunkNumber
		m["citation"] = s.Citation
	default:
		m["video_id"] = s.VideoID
		m["start"] = s.Start
		m["url"] = s.URL
	}
	return m
}

// Match is one scored result from the vector store, already reshaped
// from whatever the backend row looked like.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
	Values   []float32      `json:"values"`
}

// Summary is the stored per-video summary blob.
type Summary struct {
	VideoID string `json:"video_id"`
	Summary string `json:"summary"`
}
