// Package config loads process configuration from the environment: a
// flat struct with os.Getenv-with-fallback lookups, no external config
// framework.
package config

import "os"

// Config holds server configuration for cmd/edlengine.
type Config struct {
	ListenAddr    string
	LogLevel      string
	OutputDir     string
	RenderLogPath string
	CatalogDSN    string
	RedisAddr     string
	RedisChannel  string
	S3Bucket      string
	OTLPEndpoint  string
}

// Load loads configuration from environment variables, falling back to
// development defaults.
func Load() *Config {
	return &Config{
		ListenAddr:    getenv("EDL_LISTEN_ADDR", ":8080"),
		LogLevel:      getenv("EDL_LOG_LEVEL", "INFO"),
		OutputDir:     getenv("EDL_OUTPUT_DIR", "./renders"),
		RenderLogPath: getenv("EDL_RENDER_LOG_PATH", "./edl-render-log.sqlite"),
		CatalogDSN:    getenv("EDL_CATALOG_DSN", ""),
		RedisAddr:     getenv("EDL_REDIS_ADDR", ""),
		RedisChannel:  getenv("EDL_REDIS_CHANNEL", "edl-events"),
		S3Bucket:      getenv("EDL_S3_BUCKET", ""),
		OTLPEndpoint:  getenv("EDL_OTLP_ENDPOINT", ""),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
