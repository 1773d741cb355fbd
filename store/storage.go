package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"vidsearch/types"
)

// VectorStorer is the index surface the pipeline and the query engine
// work against: provision a collection, upsert by id, query nearest
// neighbours, and gate re-ingestion per collection.
type VectorStorer interface {
	EnsureCollection(ctx context.Context, name string, dimension int, metric string) error
	UpsertSegments(ctx context.Context, collection string, segments []types.Segment, batchSize int) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]types.Match, error)
	IsProcessed(ctx context.Context, collection, sourceID string) (bool, error)
	MarkProcessed(ctx context.Context, collection, sourceID string) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	query := `
    CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		metric TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS processed_sources (
		collection TEXT NOT NULL,
		source_id TEXT NOT NULL,
		PRIMARY KEY (collection, source_id)
	);
    `
	_, err := p.pool.Exec(ctx, query)
	return err
}

// EnsureCollection provisions the registry row, the per-collection
// segment table and its ivfflat index. An existing collection with a
// different dimension or metric is a warning, not an error: upserts
// against a truly incompatible table will fail loudly on their own.
// Two processes racing to create the same collection both succeed.
func (p *PostgresStore) EnsureCollection(ctx context.Context, name string, dimension int, metric string) error {
	var haveDim int
	var haveMetric string
	known := true
	err := p.pool.QueryRow(ctx, "SELECT dimension, metric FROM collections WHERE name = $1", name).
		Scan(&haveDim, &haveMetric)
	switch {
	case err == nil:
		if haveDim != dimension || haveMetric != metric {
			log.Printf("[PROVISION] collection %s exists with (dim=%d, metric=%s), requested (dim=%d, metric=%s) - proceeding anyway",
				name, haveDim, haveMetric, dimension, metric)
		}
	case errors.Is(err, pgx.ErrNoRows):
		known = false
	default:
		return err
	}

	// the table create runs even for a known collection: a crash (or a
	// concurrent provisioner) may have left the registry row without
	// its segment table, and upserts need the table, not the row
	ops := "vector_cosine_ops"
	if metric == "dotproduct" {
		ops = "vector_ip_ops"
	}
	table := segmentTable(name)
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		metadata JSONB NOT NULL,
		embedding vector(%d)
	);
	CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding %s) WITH (lists = 100);
	`, table, dimension, indexName(name), table, ops)

	if _, err := p.pool.Exec(ctx, query); err != nil {
		if !isAlreadyExists(err) {
			return err
		}
		// lost the create race, the other writer won
		log.Printf("[PROVISION] collection %s created concurrently, continuing", name)
	}

	if known {
		return nil
	}

	if _, err := p.pool.Exec(ctx,
		"INSERT INTO collections (name, dimension, metric) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING",
		name, dimension, metric); err != nil {
		return err
	}

	log.Printf("[PROVISION] created collection %s (dim=%d, metric=%s)", name, dimension, metric)
	return nil
}

// UpsertSegments writes (id, vector, metadata) triples in batches.
// Re-upserting an id overwrites; the embedding is never duplicated
// into the metadata.
func (p *PostgresStore) UpsertSegments(ctx context.Context, collection string, segments []types.Segment, batchSize int) error {
	if batchSize < 1 {
		batchSize = 64
	}
	table := segmentTable(collection)
	query := fmt.Sprintf(`
	INSERT INTO %s (id, metadata, embedding)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding
	`, table)

	for i := 0; i < len(segments); i += batchSize {
		end := i + batchSize
		if end > len(segments) {
			end = len(segments)
		}

		batch := &pgx.Batch{}
		for _, seg := range segments[i:end] {
			meta, err := json.Marshal(seg.Metadata())
			if err != nil {
				return fmt.Errorf("marshaling metadata for %s: %w", seg.ID, err)
			}
			batch.Queue(query, seg.ID, meta, pgvector.NewVector(seg.Embedding))
		}
		if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting batch %d-%d: %w", i, end, err)
		}
		log.Printf("[UPSERT] %s: batch %d-%d of %d", collection, i, end, len(segments))
	}
	return nil
}

// Search returns the topK nearest neighbours with scores oriented so
// that higher is always more relevant, regardless of metric.
func (p *PostgresStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]types.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	var metric string
	err := p.pool.QueryRow(ctx, "SELECT metric FROM collections WHERE name = $1", collection).Scan(&metric)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	if err != nil {
		return nil, err
	}

	// <#> is negative inner product, <=> cosine distance
	scoreExpr := "1 - (embedding <=> $1)"
	orderExpr := "embedding <=> $1"
	if metric == "dotproduct" {
		scoreExpr = "(embedding <#> $1) * -1"
		orderExpr = "embedding <#> $1"
	}

	query := fmt.Sprintf(`
	SELECT id, metadata, embedding, %s AS score
	FROM %s
	WHERE embedding IS NOT NULL
	ORDER BY %s
	LIMIT $2
	`, scoreExpr, segmentTable(collection), orderExpr)

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []types.Match
	for rows.Next() {
		var (
			m        types.Match
			metaJSON []byte
			emb      pgvector.Vector
		)
		if err := rows.Scan(&m.ID, &metaJSON, &emb, &m.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", m.ID, err)
		}
		m.Values = emb.Slice()
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *PostgresStore) IsProcessed(ctx context.Context, collection, sourceID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM processed_sources WHERE collection = $1 AND source_id = $2)",
		collection, sourceID).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) MarkProcessed(ctx context.Context, collection, sourceID string) error {
	_, err := p.pool.Exec(ctx,
		"INSERT INTO processed_sources (collection, source_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		collection, sourceID)
	return err
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}

// segmentTable maps a collection name to its quoted table identifier.
// Collection names are already sanitized to [a-z0-9-]; quoting keeps
// the dashes legal.
func segmentTable(collection string) string {
	return pgx.Identifier{"seg_" + collection}.Sanitize()
}

func indexName(collection string) string {
	return pgx.Identifier{"seg_" + collection + "_embedding_idx"}.Sanitize()
}

func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// duplicate_table / unique_violation / duplicate_object
		return pgErr.Code == "42P07" || pgErr.Code == "23505" || pgErr.Code == "42710"
	}
	return false
}
