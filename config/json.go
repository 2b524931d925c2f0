package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/meridianpress/draftsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	LocalDSN         string         `json:"local_dsn"`
	RemoteDSN        string         `json:"remote_dsn"`
	AutosaveInterval timex.Duration `json:"autosave_interval"`
	S3AccessKey      string         `json:"s3_access_key"`
	S3SecretKey      string         `json:"s3_secret_key"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3PublicBaseURL  string         `json:"s3_public_base_url"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from the DRAFTSYNC_CONFIG environment variable;
// if unset, no JSON is loaded and the function returns. Read or
// unmarshal errors panic (the caller should recover if desired). Only
// non-empty JSON values override the current Config.
//
// Intended usage is: defaults -> parseJson -> parseEnv, where later
// stages override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := os.Getenv("DRAFTSYNC_CONFIG")
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.LocalDSN != "" {
		cfg.LocalDSN = jc.LocalDSN
	}
	if jc.RemoteDSN != "" {
		cfg.RemoteDSN = jc.RemoteDSN
	}
	if jc.AutosaveInterval.Duration != 0 {
		cfg.AutosaveInterval = time.Duration(jc.AutosaveInterval.Duration)
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3PublicBaseURL != "" {
		cfg.S3PublicBaseURL = jc.S3PublicBaseURL
	}
}
