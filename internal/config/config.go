package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort   string
	LogLevel  string
	LogFormat string

	UploadTickInterval    time.Duration
	UploadTickStep        int
	ChatResponseDelay     time.Duration
	ChatResponseTimeout   time.Duration
	ChatHistoryLimit      int
	ToolRunDelay          time.Duration
	ToolRunTimeout        time.Duration
	ToolsRequireDocuments bool
	ToolCatalogPath       string
	SeedDemoData          bool

	AIBackend           string
	OllamaURL           string
	OllamaGenModel      string
	ToolContextRunes    int
	ChunkSize           int
	ChunkOverlap        int
	MaxExtractBytes     int64
	StoragePath         string
	PostgresDSN         string
	NATSURL             string
	NATSSubjectPrefix   string
	NATSEventBuffer     int
	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration
	MaxUploadBytes      int64
	ShutdownTimeout     time.Duration
}

const (
	BackendMock   = "mock"
	BackendOllama = "ollama"
)

// Load reads the environment, after merging an optional .env file from the working
// directory. Variables already set in the environment win over the file.
func Load() Config {
	loadDotEnv(".env")

	return Config{
		APIPort:   mustEnv("API_PORT", "8080"),
		LogLevel:  mustEnv("LOG_LEVEL", "info"),
		LogFormat: mustEnv("LOG_FORMAT", "json"),

		UploadTickInterval:    mustEnvDuration("UPLOAD_TICK_INTERVAL", 200*time.Millisecond),
		UploadTickStep:        mustEnvInt("UPLOAD_TICK_STEP", 10),
		ChatResponseDelay:     mustEnvDuration("CHAT_RESPONSE_DELAY", 1500*time.Millisecond),
		ChatResponseTimeout:   mustEnvDuration("CHAT_RESPONSE_TIMEOUT", 60*time.Second),
		ChatHistoryLimit:      mustEnvInt("CHAT_HISTORY_LIMIT", 50),
		ToolRunDelay:          mustEnvDuration("TOOL_RUN_DELAY", 3*time.Second),
		ToolRunTimeout:        mustEnvDuration("TOOL_RUN_TIMEOUT", 5*time.Minute),
		ToolsRequireDocuments: mustEnvBool("TOOLS_REQUIRE_DOCUMENTS", false),
		ToolCatalogPath:       mustEnv("TOOL_CATALOG_PATH", ""),
		SeedDemoData:          mustEnvBool("SEED_DEMO_DATA", true),

		AIBackend:        mustEnv("AI_BACKEND", BackendMock),
		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		ToolContextRunes: mustEnvInt("TOOL_CONTEXT_RUNES", 12000),
		ChunkSize:        mustEnvInt("CHUNK_SIZE", 1200),
		ChunkOverlap:     mustEnvInt("CHUNK_OVERLAP", 0),
		MaxExtractBytes:  mustEnvInt64("MAX_EXTRACT_BYTES", 32<<20),

		StoragePath: mustEnv("STORAGE_PATH", "./data/uploads"),
		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:           mustEnv("NATS_URL", ""),
		NATSSubjectPrefix: mustEnv("NATS_SUBJECT_PREFIX", "studydesk.state"),
		NATSEventBuffer:   mustEnvInt("NATS_EVENT_BUFFER", 256),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),
		MaxUploadBytes:      mustEnvInt64("MAX_UPLOAD_BYTES", 50<<20),
		ShutdownTimeout:     mustEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv_load_failed", "path", path, "error", err)
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
