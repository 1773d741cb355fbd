// Package ingest runs the fetch → segment → embed → upsert → mirror
// pipeline. Requests are validated synchronously; the pipeline itself
// runs in a background worker and reports through the job registry.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"vidsearch/fetch"
	"vidsearch/model"
	"vidsearch/pdf"
	"vidsearch/segment"
	"vidsearch/srt"
	"vidsearch/store"
	"vidsearch/types"
)

// Summarizer generates the per-video summary at the end of a run.
// Optional; a nil summarizer just skips the step.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// PDFUpload is one file from a multipart train request, keyed to the
// video it accompanies.
type PDFUpload struct {
	VideoID string
	Name    string
	Data    []byte
}

type Pipeline struct {
	cfg        types.Config
	source     fetch.CaptionSource
	embedder   model.Embedder
	index      store.VectorStorer
	objects    store.ObjectStore
	summarizer Summarizer
	extract    func([]byte) ([]string, error)
	jobs       *JobRegistry
	logger     *slog.Logger
}

func NewPipeline(cfg types.Config, source fetch.CaptionSource, embedder model.Embedder,
	index store.VectorStorer, objects store.ObjectStore, summarizer Summarizer) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		embedder:   embedder,
		index:      index,
		objects:    objects,
		summarizer: summarizer,
		extract:    pdf.ExtractPages,
		jobs:       NewJobRegistry(),
		logger:     slog.Default(),
	}
}

func (p *Pipeline) Jobs() *JobRegistry {
	return p.jobs
}

// TrainChannel lists the channel's videos and ingests every one not
// already processed, in the background. The returned job is already
// registered and pollable.
func (p *Pipeline) TrainChannel(channelURL string) *Job {
	collection := segment.CollectionName(channelURL)
	job := p.jobs.Create(collection)

	go p.run(job.ID, collection, func(ctx context.Context) (bool, error) {
		ids, err := p.source.ListVideos(ctx, channelURL)
		if err != nil {
			return false, fmt.Errorf("listing channel videos: %w", err)
		}
		p.logger.Info("channel listed", "collection", collection, "videos", len(ids))

		degraded := false
		for _, videoID := range ids {
			d, err := p.processVideo(ctx, job.ID, collection, videoID)
			if err != nil {
				// one broken video never sinks the run
				log.Printf("[INGEST] skipping video %s: %v", videoID, err)
				p.jobs.addSkipped(job.ID, videoID)
				continue
			}
			degraded = degraded || d
		}
		return degraded, nil
	})
	return job
}

// TrainVideo ingests a single video. The tracker check happens
// synchronously so callers get the "already processed" short-circuit
// before a job is spawned.
func (p *Pipeline) TrainVideo(ctx context.Context, channelURL, videoURL string) (*Job, bool, error) {
	collection := segment.CollectionName(channelURL)
	videoID := fetch.VideoID(videoURL)

	done, err := p.index.IsProcessed(ctx, collection, videoID)
	if err != nil {
		return nil, false, err
	}
	if done {
		return nil, true, nil
	}

	job := p.jobs.Create(collection)
	go p.run(job.ID, collection, func(ctx context.Context) (bool, error) {
		return p.processVideo(ctx, job.ID, collection, videoID)
	})
	return job, false, nil
}

// TrainPDFs ingests uploaded PDF documents into the channel's
// collection.
func (p *Pipeline) TrainPDFs(channelURL string, uploads []PDFUpload) *Job {
	collection := segment.CollectionName(channelURL)
	job := p.jobs.Create(collection)

	go p.run(job.ID, collection, func(ctx context.Context) (bool, error) {
		degraded := false
		for _, up := range uploads {
			d, err := p.processPDF(ctx, job.ID, collection, up)
			if err != nil {
				log.Printf("[INGEST] skipping pdf %s: %v", up.Name, err)
				p.jobs.addSkipped(job.ID, up.Name)
				continue
			}
			degraded = degraded || d
		}
		return degraded, nil
	})
	return job
}

// run wraps a background unit of work with job state transitions and
// panic containment; the original caller already got its response.
func (p *Pipeline) run(jobID, collection string, fn func(context.Context) (bool, error)) {
	defer func() {
		if r := recover(); r != nil {
			p.jobs.fail(jobID, fmt.Errorf("panic: %v", r))
			log.Printf("[INGEST] job %s panicked: %v", jobID, r)
		}
	}()

	p.jobs.start(jobID)
	ctx := context.Background()

	degraded, err := fn(ctx)
	if err != nil {
		p.jobs.fail(jobID, err)
		log.Printf("[INGEST] job %s (%s) failed: %v", jobID, collection, err)
		return
	}
	p.jobs.finish(jobID, degraded)
}

// processVideo runs one video through the whole pipeline. Returns
// whether the durable mirror write was lost (degraded), and an error
// only for failures worth skipping the video over.
func (p *Pipeline) processVideo(ctx context.Context, jobID, collection, videoID string) (bool, error) {
	done, err := p.index.IsProcessed(ctx, collection, videoID)
	if err != nil {
		return false, err
	}
	if done {
		log.Printf("[INGEST] video %s already processed", videoID)
		return false, nil
	}

	cues, err := p.source.FetchCaptions(ctx, videoID)
	if err != nil {
		if errors.Is(err, fetch.ErrNoCaptions) {
			return false, fmt.Errorf("video %s: %w", videoID, err)
		}
		return false, err
	}

	segments := segment.FromCues(videoID, cues, segment.Options{
		Window: p.cfg.Window,
		Stride: p.cfg.Stride,
	})
	if len(segments) == 0 {
		log.Printf("[INGEST] video %s produced no segments", videoID)
		return false, p.index.MarkProcessed(ctx, collection, videoID)
	}

	segments, err = model.EmbedSegments(ctx, p.embedder, segments, p.cfg.BatchSize)
	if err != nil {
		return false, err
	}

	if err := p.upsert(ctx, collection, segments); err != nil {
		return false, err
	}

	degraded := !p.mirror(ctx, store.TranscriptKey(videoID), segments)
	p.summarize(ctx, videoID, cues)

	if err := p.index.MarkProcessed(ctx, collection, videoID); err != nil {
		return degraded, err
	}
	p.jobs.addProcessed(jobID, videoID)
	p.logger.Info("video ingested", "video_id", videoID, "segments", len(segments), "collection", collection)
	return degraded, nil
}

func (p *Pipeline) processPDF(ctx context.Context, jobID, collection string, up PDFUpload) (bool, error) {
	pdfID := segment.PDFID(up.Data)

	done, err := p.index.IsProcessed(ctx, collection, pdfID)
	if err != nil {
		return false, err
	}
	if done {
		log.Printf("[INGEST] pdf %s (%s) already processed", up.Name, pdfID)
		return false, nil
	}

	// keep the original bytes first, they are the source of truth
	degraded := false
	if err := p.objects.Put(ctx, store.PDFKey(up.VideoID, pdfID), up.Data); err != nil {
		log.Printf("[STORAGE] failed to store pdf bytes for %s: %v", up.Name, err)
		degraded = true
	}

	pages, err := p.extract(up.Data)
	if err != nil {
		return degraded, fmt.Errorf("extracting %s: %w", up.Name, err)
	}

	segments := segment.FromPages(pdfID, up.Name, pages, p.cfg.ChunkSize)
	if len(segments) == 0 {
		log.Printf("[INGEST] pdf %s produced no segments", up.Name)
		return degraded, p.index.MarkProcessed(ctx, collection, pdfID)
	}

	segments, err = model.EmbedSegments(ctx, p.embedder, segments, p.cfg.BatchSize)
	if err != nil {
		return degraded, err
	}

	if err := p.upsert(ctx, collection, segments); err != nil {
		return degraded, err
	}

	if !p.mirror(ctx, store.PDFSegmentsKey(up.VideoID, pdfID), segments) {
		degraded = true
	}

	if err := p.index.MarkProcessed(ctx, collection, pdfID); err != nil {
		return degraded, err
	}
	p.jobs.addProcessed(jobID, pdfID)
	p.logger.Info("pdf ingested", "pdf", up.Name, "pdf_id", pdfID, "segments", len(segments))
	return degraded, nil
}

// upsert provisions the collection from the observed embedding shape,
// then writes the segments to the index. Provisioning races resolve
// inside the store.
func (p *Pipeline) upsert(ctx context.Context, collection string, segments []types.Segment) error {
	dimension := len(segments[0].Embedding)
	if err := p.index.EnsureCollection(ctx, collection, dimension, p.cfg.Metric); err != nil {
		return fmt.Errorf("provisioning collection %s: %w", collection, err)
	}
	return p.index.UpsertSegments(ctx, collection, segments, p.cfg.BatchSize)
}

// mirror writes the enriched segment blob after the index upsert.
// Best-effort: a failure is logged and degrades the job, it never
// rolls back the upsert. Reports success.
func (p *Pipeline) mirror(ctx context.Context, key string, segments []types.Segment) bool {
	blob, err := json.Marshal(segments)
	if err != nil {
		log.Printf("[STORAGE] failed to marshal mirror blob %s: %v", key, err)
		return false
	}
	if err := p.objects.Put(ctx, key, blob); err != nil {
		log.Printf("[STORAGE] failed to write mirror blob %s: %v", key, err)
		return false
	}
	return true
}

func (p *Pipeline) summarize(ctx context.Context, videoID string, cues []srt.Cue) {
	if p.summarizer == nil {
		return
	}

	parts := make([]string, 0, len(cues))
	total := 0
	for _, cue := range cues {
		parts = append(parts, cue.Text)
		total += len(cue.Text)
		if total > maxSummaryInput {
			break
		}
	}

	summary, err := p.summarizer.Summarize(ctx, strings.Join(parts, " "))
	if err != nil {
		log.Printf("[SUMMARY] failed for video %s: %v", videoID, err)
		return
	}

	blob, err := json.Marshal(types.Summary{VideoID: videoID, Summary: summary})
	if err != nil {
		log.Printf("[SUMMARY] failed to marshal for video %s: %v", videoID, err)
		return
	}
	if err := p.objects.Put(ctx, store.SummaryKey(videoID), blob); err != nil {
		log.Printf("[SUMMARY] failed to store for video %s: %v", videoID, err)
	}
}

// maxSummaryInput bounds the prompt the same way the query context is
// bounded: characters, not tokens, which is crude but predictable.
const maxSummaryInput = 20000
