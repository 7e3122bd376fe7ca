package config

// Ingest endpoint knobs. Env:
// - INGEST_MAX_SIZE_MB (default 10)
// - INGEST_RATE_LIMIT_MAX_REQUESTS (default 60)
// - INGEST_RATE_LIMIT_WINDOW_SECONDS (default 60)

func IngestMaxSizeBytes() int64 {
	return int64(IntFromEnv("INGEST_MAX_SIZE_MB", 10)) * 1024 * 1024
}

func IngestRateLimitMax() int64 {
	return int64(IntFromEnv("INGEST_RATE_LIMIT_MAX_REQUESTS", 60))
}

func IngestRateLimitWindowSeconds() int64 {
	return int64(IntFromEnv("INGEST_RATE_LIMIT_WINDOW_SECONDS", 60))
}
