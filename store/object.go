package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned by Get for keys that were never put.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the durable mirror: enriched segment blobs, original
// PDF bytes and generated summaries live here under deterministic
// keys, so chat and summary flows can read segments (embeddings
// included) without re-calling the embedding model.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

func TranscriptKey(videoID string) string {
	return fmt.Sprintf("transcripts/%s.json", videoID)
}

func PDFSegmentsKey(videoID, pdfID string) string {
	return fmt.Sprintf("pdf_segments/%s/%s.json", videoID, pdfID)
}

func PDFKey(videoID, pdfID string) string {
	return fmt.Sprintf("pdfs/%s/%s.pdf", videoID, pdfID)
}

func SummaryKey(videoID string) string {
	return fmt.Sprintf("summaries/%s.json", videoID)
}
