package types

import (
	"fmt"
	"os"
	"strconv"
)

// Config collects every tunable the service reads from the
// environment. Score thresholds are tied to the embedding model's
// score distribution and must never be hardcoded at call sites.
type Config struct {
	ServerAddr string

	PGHost   string
	PGPort   int
	PGUser   string
	PGPass   string
	PGDBName string

	OllamaURL   string
	OllamaModel string
	OpenAIKey   string

	LLMURL   string
	LLMModel string

	DataDir       string
	StorageBucket string

	CustomerKey string

	Metric        string
	ScoreFloor    float64
	ChatThreshold float64
	TopK          int
	BatchSize     int
	ChunkSize     int
	Window        int
	Stride        int
}

func LoadConfig() Config {
	port, _ := strconv.Atoi(envOr("PG_PORT", "5432"))
	return Config{
		ServerAddr: envOr("SERVER_ADDR", ":8080"),

		PGHost:   envOr("PG_HOST", "localhost"),
		PGPort:   port,
		PGUser:   envOr("PG_USER", "postgres"),
		PGPass:   os.Getenv("PG_PASS"),
		PGDBName: envOr("PG_DB_NAME", "vidsearch"),

		OllamaURL:   envOr("OLLAMA_EMBEDDING_URL", "http://localhost:11434/api/embeddings"),
		OllamaModel: envOr("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),

		LLMURL:   envOr("LLM_URL", "http://localhost:11434/api/generate"),
		LLMModel: envOr("LLM_MODEL", "llama3"),

		DataDir:       envOr("DATA_DIR", "./data"),
		StorageBucket: os.Getenv("STORAGE_BUCKET"),

		CustomerKey: os.Getenv("CUSTOMER_KEY"),

		Metric:        envOr("INDEX_METRIC", "dotproduct"),
		ScoreFloor:    envFloat("SCORE_FLOOR", 22.5),
		ChatThreshold: envFloat("CHAT_THRESHOLD", 20),
		TopK:          envInt("TOP_K", 10),
		BatchSize:     envInt("BATCH_SIZE", 64),
		ChunkSize:     envInt("CHUNK_SIZE", 512),
		Window:        envInt("SEGMENT_WINDOW", 0),
		Stride:        envInt("SEGMENT_STRIDE", 0),
	}
}

// ConnStr builds the Postgres DSN the same way the server always has.
func (c Config) ConnStr() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
