package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadTaskDefaults(t *testing.T) {
	t.Setenv("UPLOAD_TICK_INTERVAL", "")
	t.Setenv("CHAT_RESPONSE_DELAY", "")
	t.Setenv("TOOL_RUN_DELAY", "")
	t.Setenv("AI_BACKEND", "")
	t.Setenv("SEED_DEMO_DATA", "")

	cfg := Load()
	if cfg.UploadTickInterval != 200*time.Millisecond || cfg.UploadTickStep != 10 {
		t.Fatalf("unexpected upload defaults: %v / %d", cfg.UploadTickInterval, cfg.UploadTickStep)
	}
	if cfg.ChatResponseDelay != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s chat delay, got %v", cfg.ChatResponseDelay)
	}
	if cfg.ToolRunDelay != 3*time.Second {
		t.Fatalf("expected 3s tool delay, got %v", cfg.ToolRunDelay)
	}
	if cfg.AIBackend != BackendMock || !cfg.SeedDemoData || cfg.ToolsRequireDocuments {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("UPLOAD_TICK_INTERVAL", "50ms")
	t.Setenv("TOOL_RUN_TIMEOUT", "30s")
	t.Setenv("TOOLS_REQUIRE_DOCUMENTS", "true")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	cfg := Load()
	if cfg.UploadTickInterval != 50*time.Millisecond {
		t.Fatalf("expected 50ms ticks, got %v", cfg.UploadTickInterval)
	}
	if cfg.ToolRunTimeout != 30*time.Second || !cfg.ToolsRequireDocuments {
		t.Fatalf("unexpected tool config: %+v", cfg)
	}
	if cfg.APIRateLimitRPS != 2.5 || cfg.MaxUploadBytes != 1024 {
		t.Fatalf("unexpected limits: %v / %d", cfg.APIRateLimitRPS, cfg.MaxUploadBytes)
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("CHAT_RESPONSE_DELAY", "soon")
	t.Setenv("UPLOAD_TICK_STEP", "ten")
	t.Setenv("SEED_DEMO_DATA", "maybe")

	cfg := Load()
	if cfg.ChatResponseDelay != 1500*time.Millisecond || cfg.UploadTickStep != 10 || !cfg.SeedDemoData {
		t.Fatalf("malformed values did not fall back: %+v", cfg)
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OLLAMA_GEN_MODEL=from-file\nSTUDYDESK_TEST_ONLY=file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("OLLAMA_GEN_MODEL", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("STUDYDESK_TEST_ONLY") })

	loadDotEnv(path)

	if got := os.Getenv("OLLAMA_GEN_MODEL"); got != "from-env" {
		t.Fatalf("environment was overridden: %q", got)
	}
	if got := os.Getenv("STUDYDESK_TEST_ONLY"); got != "file" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}
