package config

import (
	"os"
	"time"
)

// parseEnv overlays Config with values from environment variables.
// Unset or empty variables leave the current value untouched; a
// malformed DRAFTSYNC_AUTOSAVE_INTERVAL is ignored rather than fatal.
func parseEnv(cfg *Config) {
	if v := os.Getenv("DRAFTSYNC_LOCAL_DSN"); v != "" {
		cfg.LocalDSN = v
	}
	if v := os.Getenv("DRAFTSYNC_REMOTE_DSN"); v != "" {
		cfg.RemoteDSN = v
	}
	if v := os.Getenv("DRAFTSYNC_AUTOSAVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AutosaveInterval = d
		}
	}
	if v := os.Getenv("DRAFTSYNC_S3_ACCESS_KEY"); v != "" {
		cfg.S3AccessKey = v
	}
	if v := os.Getenv("DRAFTSYNC_S3_SECRET_KEY"); v != "" {
		cfg.S3SecretKey = v
	}
	if v := os.Getenv("DRAFTSYNC_S3_BUCKET"); v != "" {
		cfg.S3Bucket = v
	}
	if v := os.Getenv("DRAFTSYNC_S3_REGION"); v != "" {
		cfg.S3Region = v
	}
	if v := os.Getenv("DRAFTSYNC_S3_BASE_ENDPOINT"); v != "" {
		cfg.S3BaseEndpoint = v
	}
	if v := os.Getenv("DRAFTSYNC_S3_PUBLIC_BASE_URL"); v != "" {
		cfg.S3PublicBaseURL = v
	}
}
