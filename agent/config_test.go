package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
backend_url = "http://localhost:8080"
device_api_key = "key"
store_id = "store-1"
device_id = "device-1"
watch_path = "/var/pos/exports"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IngestPath != "/ingest/xml" {
		t.Fatalf("IngestPath = %q", cfg.IngestPath)
	}
	if cfg.FileGlob != "*.xml" {
		t.Fatalf("FileGlob = %q", cfg.FileGlob)
	}
	if cfg.Concurrency != 2 {
		t.Fatalf("Concurrency = %d", cfg.Concurrency)
	}
	if cfg.MaxFileSizeBytes != 10*1024*1024 {
		t.Fatalf("MaxFileSizeBytes = %d", cfg.MaxFileSizeBytes)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.BaseDelayMs != 1000 || cfg.Retry.MaxDelayMs != 30000 {
		t.Fatalf("Retry = %+v", cfg.Retry)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
backend_url = "http://ingest.example.com"
ingest_path = "/v2/ingest"
device_api_key = "key"
store_id = "store-1"
device_id = "device-1"
watch_path = "/exports"
file_glob = "*.XML"
concurrency = 4

[retry]
max_attempts = 8
base_delay_ms = 250
max_delay_ms = 5000
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IngestPath != "/v2/ingest" || cfg.Concurrency != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Retry.MaxAttempts != 8 || cfg.Retry.BaseDelayMs != 250 || cfg.Retry.MaxDelayMs != 5000 {
		t.Fatalf("Retry = %+v", cfg.Retry)
	}
}

func TestLoadConfig_MissingIdentity(t *testing.T) {
	path := writeConfig(t, `
backend_url = "http://localhost:8080"
device_api_key = "key"
store_id = "store-1"
watch_path = "/exports"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for missing device_id")
	}
}
