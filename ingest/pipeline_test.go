package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"vidsearch/fetch"
	"vidsearch/segment"
	"vidsearch/srt"
	"vidsearch/store"
	"vidsearch/types"
)

type memIndex struct {
	mu          sync.Mutex
	collections map[string]string // name -> metric
	segments    map[string]types.Segment
	processed   map[string]bool
}

func newMemIndex() *memIndex {
	return &memIndex{
		collections: make(map[string]string),
		segments:    make(map[string]types.Segment),
		processed:   make(map[string]bool),
	}
}

func (m *memIndex) EnsureCollection(ctx context.Context, name string, dimension int, metric string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = metric
	return nil
}

func (m *memIndex) UpsertSegments(ctx context.Context, collection string, segments []types.Segment, batchSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range segments {
		m.segments[collection+"/"+s.ID] = s
	}
	return nil
}

func (m *memIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]types.Match, error) {
	return nil, nil
}

func (m *memIndex) IsProcessed(ctx context.Context, collection, sourceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[collection+"/"+sourceID], nil
}

func (m *memIndex) MarkProcessed(ctx context.Context, collection, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[collection+"/"+sourceID] = true
	return nil
}

type memObjects struct {
	mu    sync.Mutex
	blobs map[string][]byte
	fail  bool
}

func newMemObjects() *memObjects {
	return &memObjects{blobs: make(map[string][]byte)}
}

func (m *memObjects) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("storage down")
	}
	m.blobs[key] = data
	return nil
}

func (m *memObjects) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.blobs[key]; ok {
		return data, nil
	}
	return nil, store.ErrObjectNotFound
}

type fakeSource struct {
	videos     []string
	noCaptions map[string]bool
}

func (f *fakeSource) ListVideos(ctx context.Context, channelURL string) ([]string, error) {
	return f.videos, nil
}

func (f *fakeSource) FetchCaptions(ctx context.Context, videoID string) ([]srt.Cue, error) {
	if f.noCaptions[videoID] {
		return nil, fetch.ErrNoCaptions
	}
	return []srt.Cue{
		{Start: 0, Duration: 2, Text: "hello from " + videoID},
		{Start: 2.5, Duration: 2, Text: "more about " + videoID},
	}, nil
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, float32(len(text))}, nil
}

func (u unitEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = u.Embed(ctx, texts[i])
	}
	return out, nil
}

func testConfig() types.Config {
	return types.Config{
		Metric:    "dotproduct",
		BatchSize: 64,
		ChunkSize: 512,
	}
}

func waitForJob(t *testing.T, p *Pipeline, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := p.Jobs().Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		switch job.State {
		case JobSucceeded, JobDegraded, JobFailed:
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
	return Job{}
}

func TestTrainChannelIdempotent(t *testing.T) {
	source := &fakeSource{videos: []string{"v1", "v2"}}
	index := newMemIndex()
	objects := newMemObjects()
	p := NewPipeline(testConfig(), source, unitEmbedder{}, index, objects, nil)

	job := waitForJob(t, p, p.TrainChannel("demo").ID)
	if job.State != JobSucceeded {
		t.Fatalf("first run state = %s (%s)", job.State, job.Error)
	}
	if len(job.Processed) != 2 {
		t.Fatalf("first run processed %v", job.Processed)
	}

	source.videos = []string{"v1", "v2", "v3"}
	job = waitForJob(t, p, p.TrainChannel("demo").ID)
	if len(job.Processed) != 1 || job.Processed[0] != "v3" {
		t.Errorf("second run should process only v3, got %v", job.Processed)
	}
}

func TestTrainChannelSkipsVideosWithoutCaptions(t *testing.T) {
	source := &fakeSource{
		videos:     []string{"v1", "nocap", "v2"},
		noCaptions: map[string]bool{"nocap": true},
	}
	index := newMemIndex()
	p := NewPipeline(testConfig(), source, unitEmbedder{}, index, newMemObjects(), nil)

	job := waitForJob(t, p, p.TrainChannel("demo").ID)
	if job.State != JobSucceeded {
		t.Fatalf("state = %s (%s)", job.State, job.Error)
	}
	if len(job.Processed) != 2 {
		t.Errorf("processed = %v", job.Processed)
	}
	if len(job.Skipped) != 1 || job.Skipped[0] != "nocap" {
		t.Errorf("skipped = %v", job.Skipped)
	}
}

func TestTrainVideoShortCircuit(t *testing.T) {
	source := &fakeSource{}
	index := newMemIndex()
	p := NewPipeline(testConfig(), source, unitEmbedder{}, index, newMemObjects(), nil)
	ctx := context.Background()

	job, already, err := p.TrainVideo(ctx, "demo", "https://www.youtube.com/watch?v=v9")
	if err != nil || already {
		t.Fatalf("first call: already=%v err=%v", already, err)
	}
	waitForJob(t, p, job.ID)

	_, already, err = p.TrainVideo(ctx, "demo", "https://www.youtube.com/watch?v=v9")
	if err != nil {
		t.Fatal(err)
	}
	if !already {
		t.Error("second call should report already processed")
	}
}

func TestMirrorWriteAndDegradedState(t *testing.T) {
	source := &fakeSource{videos: []string{"v1"}}
	index := newMemIndex()
	objects := newMemObjects()
	p := NewPipeline(testConfig(), source, unitEmbedder{}, index, objects, nil)

	job := waitForJob(t, p, p.TrainChannel("demo").ID)
	if job.State != JobSucceeded {
		t.Fatalf("state = %s", job.State)
	}

	blob, err := objects.Get(context.Background(), store.TranscriptKey("v1"))
	if err != nil {
		t.Fatalf("mirror blob missing: %v", err)
	}
	var segs []types.Segment
	if err := json.Unmarshal(blob, &segs); err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 || len(segs[0].Embedding) == 0 {
		t.Errorf("mirror blob incomplete: %d segments", len(segs))
	}

	// broken storage degrades but does not fail the run, and the
	// index upsert stays in place
	source.videos = []string{"v2"}
	objects.fail = true
	job = waitForJob(t, p, p.TrainChannel("demo").ID)
	if job.State != JobDegraded {
		t.Errorf("state = %s, want degraded", job.State)
	}
	if _, ok := index.segments["demo/v2-t00:00:00,000"]; !ok {
		t.Error("index upsert rolled back by storage failure")
	}
}

type fixedSummarizer struct{ text string }

func (f fixedSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	return f.text, nil
}

func TestSummaryStored(t *testing.T) {
	source := &fakeSource{videos: []string{"v1"}}
	objects := newMemObjects()
	p := NewPipeline(testConfig(), source, unitEmbedder{}, newMemIndex(), objects, fixedSummarizer{text: "a video about v1"})

	waitForJob(t, p, p.TrainChannel("demo").ID)

	blob, err := objects.Get(context.Background(), store.SummaryKey("v1"))
	if err != nil {
		t.Fatalf("summary missing: %v", err)
	}
	var s types.Summary
	if err := json.Unmarshal(blob, &s); err != nil {
		t.Fatal(err)
	}
	if s.VideoID != "v1" || s.Summary != "a video about v1" {
		t.Errorf("summary = %+v", s)
	}
}

func TestTrainPDFs(t *testing.T) {
	index := newMemIndex()
	objects := newMemObjects()
	p := NewPipeline(testConfig(), &fakeSource{}, unitEmbedder{}, index, objects, nil)

	// processPDF extracts from real PDF bytes; drive the pdf path at
	// the segment level instead via an upload the extractor rejects
	job := waitForJob(t, p, p.TrainPDFs("demo", []PDFUpload{
		{VideoID: "v1", Name: "notes.pdf", Data: []byte("not a pdf")},
	}).ID)

	if job.State == JobFailed {
		t.Fatalf("whole job failed: %s", job.Error)
	}
	if len(job.Skipped) != 1 {
		t.Errorf("invalid pdf should be skipped, got %v", job.Skipped)
	}
}

func TestTrainPDFsIngestsDocument(t *testing.T) {
	index := newMemIndex()
	objects := newMemObjects()
	p := NewPipeline(testConfig(), &fakeSource{}, unitEmbedder{}, index, objects, nil)
	p.extract = func(b []byte) ([]string, error) {
		return []string{"first page text", "second page text"}, nil
	}

	data := []byte("%PDF-stand-in bytes")
	pdfID := segment.PDFID(data)

	job := waitForJob(t, p, p.TrainPDFs("demo", []PDFUpload{
		{VideoID: "v1", Name: "notes.pdf", Data: data},
	}).ID)

	if job.State != JobSucceeded {
		t.Fatalf("state = %s (%s)", job.State, job.Error)
	}
	if len(job.Processed) != 1 || job.Processed[0] != pdfID {
		t.Fatalf("processed = %v, want [%s]", job.Processed, pdfID)
	}

	seg, ok := index.segments["demo/"+pdfID+"-p1-c0"]
	if !ok {
		t.Fatal("page 1 chunk 0 missing from index")
	}
	if seg.Citation != "PDF: notes.pdf, page 1" {
		t.Errorf("citation = %q", seg.Citation)
	}
	if _, ok := index.segments["demo/"+pdfID+"-p2-c0"]; !ok {
		t.Error("page 2 chunk 0 missing from index")
	}

	ctx := context.Background()
	if raw, err := objects.Get(ctx, store.PDFKey("v1", pdfID)); err != nil || string(raw) != string(data) {
		t.Errorf("original pdf bytes not stored: %v", err)
	}
	blob, err := objects.Get(ctx, store.PDFSegmentsKey("v1", pdfID))
	if err != nil {
		t.Fatalf("segment mirror missing: %v", err)
	}
	var segs []types.Segment
	if err := json.Unmarshal(blob, &segs); err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 || len(segs[0].Embedding) == 0 {
		t.Errorf("mirror blob incomplete: %d segments", len(segs))
	}

	done, err := index.IsProcessed(ctx, "demo", pdfID)
	if err != nil || !done {
		t.Error("pdf not marked processed")
	}
}
