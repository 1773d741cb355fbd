// Package search embeds query phrases, retrieves nearest neighbours
// and reshapes raw index matches into display-safe results with a
// human-readable citation per match.
package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"vidsearch/model"
	"vidsearch/types"
)

// Indexer is the slice of the vector store the engine needs.
type Indexer interface {
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]types.Match, error)
}

// Result is one normalized match. Every field is non-null: missing
// metadata becomes an empty map, a missing vector an empty slice.
type Result struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
	Values   []float32      `json:"values"`
	Citation string         `json:"citation"`
}

type Engine struct {
	embedder model.Embedder
	index    Indexer
}

func New(embedder model.Embedder, index Indexer) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
	}
}

// Query runs phrase → vector → nearest neighbours → floor filter →
// descending sort → normalized results. An empty result list is a
// valid outcome, not an error.
func (e *Engine) Query(ctx context.Context, collection, phrase string, topK int, floor float64) ([]Result, error) {
	if topK < 1 {
		topK = 10
	}

	vector, err := e.embedder.Embed(ctx, phrase)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := e.index.Search(ctx, collection, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < floor {
			log.Printf("[FILTER] dropped match %s with score=%.4f (floor %.2f)", m.ID, m.Score, floor)
			continue
		}
		results = append(results, normalize(m))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func normalize(m types.Match) Result {
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	for k, v := range meta {
		if v == nil {
			meta[k] = ""
		}
	}

	values := m.Values
	if values == nil {
		values = []float32{}
	}

	return Result{
		ID:       m.ID,
		Score:    m.Score,
		Metadata: meta,
		Values:   values,
		Citation: Citation(meta),
	}
}

// Citation derives the human-readable locator for a match: a PDF page
// reference, or the segment URL with its timestamp rounded down to
// whole seconds. Matches with neither get an empty citation.
func Citation(meta map[string]any) string {
	if stringField(meta, "source_type") == string(types.SourcePDF) {
		return fmt.Sprintf("PDF: %s, page %d",
			stringField(meta, "pdf_name"), intField(meta, "page_number"))
	}

	url := stringField(meta, "url")
	if i := strings.Index(url, "&t="); i >= 0 {
		ts := url[i+3:]
		rest := ""
		if amp := strings.Index(ts, "&"); amp >= 0 {
			rest = ts[amp:]
			ts = ts[:amp]
		}
		if sec, err := strconv.ParseFloat(ts, 64); err == nil {
			return fmt.Sprintf("%s&t=%d%s", url[:i], int(sec), rest)
		}
	}
	return ""
}

// metadata travels through JSON, so numbers come back as float64
func stringField(meta map[string]any, key string) string {
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}

func intField(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
