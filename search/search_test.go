package search

import (
	"context"
	"testing"

	"vidsearch/types"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = f.Embed(ctx, texts[i])
	}
	return out, nil
}

type fakeIndex struct {
	matches []types.Match
}

func (f *fakeIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]types.Match, error) {
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func match(id string, score float64) types.Match {
	return types.Match{
		ID:    id,
		Score: score,
		Metadata: map[string]any{
			"source_type": "video",
			"text":        "some text",
			"url":         "https://www.youtube.com/watch?v=" + id + "&t=10",
		},
		Values: []float32{0.1},
	}
}

func TestQueryScoreFloorAndSort(t *testing.T) {
	idx := &fakeIndex{matches: []types.Match{
		match("a", 30), match("b", 10), match("c", 25), match("d", 22.5), match("e", 5),
	}}
	engine := New(fakeEmbedder{}, idx)

	results, err := engine.Query(context.Background(), "demo", "maple syrup", 10, 22.5)
	if err != nil {
		t.Fatal(err)
	}

	wantScores := []float64{30, 25, 22.5}
	if len(results) != len(wantScores) {
		t.Fatalf("got %d results, want %d", len(results), len(wantScores))
	}
	for i, want := range wantScores {
		if results[i].Score != want {
			t.Errorf("result %d score = %v, want %v", i, results[i].Score, want)
		}
	}
}

func TestQueryZeroMatches(t *testing.T) {
	engine := New(fakeEmbedder{}, &fakeIndex{})
	results, err := engine.Query(context.Background(), "demo", "anything", 10, 22.5)
	if err != nil {
		t.Fatal(err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("want empty non-nil result list, got %#v", results)
	}
}

func TestQueryNoNulls(t *testing.T) {
	idx := &fakeIndex{matches: []types.Match{
		{ID: "bare", Score: 50, Metadata: map[string]any{"url": nil}},
	}}
	engine := New(fakeEmbedder{}, idx)

	results, err := engine.Query(context.Background(), "demo", "q", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	r := results[0]
	if r.Metadata == nil || r.Values == nil {
		t.Error("nil field leaked into result")
	}
	if v, ok := r.Metadata["url"]; !ok || v != "" {
		t.Errorf("null metadata value not replaced, got %#v", v)
	}
}

func TestCitationVideo(t *testing.T) {
	meta := map[string]any{
		"source_type": "video",
		"url":         "https://www.youtube.com/watch?v=abc&t=125.7",
	}
	got := Citation(meta)
	want := "https://www.youtube.com/watch?v=abc&t=125"
	if got != want {
		t.Errorf("Citation() = %q, want %q", got, want)
	}
}

func TestCitationPDF(t *testing.T) {
	meta := map[string]any{
		"source_type": "pdf",
		"pdf_name":    "x.pdf",
		"page_number": float64(3), // numbers arrive as float64 from JSON
	}
	if got := Citation(meta); got != "PDF: x.pdf, page 3" {
		t.Errorf("Citation() = %q", got)
	}
}

func TestCitationAbsent(t *testing.T) {
	if got := Citation(map[string]any{"source_type": "video", "url": "https://example.com/clip"}); got != "" {
		t.Errorf("Citation() = %q, want empty", got)
	}
}
