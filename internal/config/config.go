/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config covers process level configuration read from environment variables.
// Every field is resolved once at startup and read-only afterwards.
type Config struct {
	Environment string
	InstanceID  string // optional stable identity for log fields in cluster deployments
	MetricsBind string

	// Catalog / acquisition
	AllowedExtensions []string // lowercase, no leading dot
	PlaylistSourceURL string   // newline-delimited list of track URLs
	FontURL           string   // drawtext font downloaded at bootstrap
	StartupVideoURL   string   // seed video referenced by the pointer playlist
	TempPath          string   // archive extraction scratch space
	MediaPath         string   // committed segments + playlist files
	FetchTimeout      time.Duration

	// Buffering / render
	GasTankLimitSeconds   float64 // target buffered playback seconds
	TargetSpeedMultiplier float64 // informational render speed target (x realtime)
	IdlePollInterval      time.Duration
	FFmpegBin             string
	FFprobeBin            string

	// Eviction
	EvictionInterval  time.Duration
	SegmentMaxAge     time.Duration
	DiskHighWatermark float64       // utilization fraction; eviction triggers above this
	SweepManifestPath string        // allow-list for the working-directory sweep
	SweepGracePeriod  time.Duration // working-dir files younger than this are presumed in-flight

	// Playlist
	PlaylistRotateEntries int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("MARINARA_ENV", "development"),
		InstanceID:  getEnv("MARINARA_INSTANCE_ID", ""),
		MetricsBind: getEnv("MARINARA_METRICS_BIND", "127.0.0.1:9000"),

		AllowedExtensions: getEnvList("MARINARA_ALLOWED_EXTENSIONS",
			[]string{"zip", "xm", "it", "s3m", "mod", "mp3", "mp4", "flac", "m4a", "aac", "flv", "3gp", "ogg", "ra", "rm"}),
		PlaylistSourceURL: getEnv("MARINARA_PLAYLIST_SOURCE_URL", ""),
		FontURL:           getEnv("MARINARA_FONT_URL", ""),
		StartupVideoURL:   getEnv("MARINARA_STARTUP_VIDEO_URL", ""),
		TempPath:          getEnv("MARINARA_TEMP_PATH", "/tmp/songs"),
		MediaPath:         getEnv("MARINARA_MEDIA_PATH", "/media"),
		FetchTimeout:      getEnvDuration("MARINARA_FETCH_TIMEOUT", 5*time.Minute),

		GasTankLimitSeconds:   getEnvFloat("MARINARA_GAS_TANK_LIMIT_SECONDS", 3600.0),
		TargetSpeedMultiplier: getEnvFloat("MARINARA_TARGET_SPEED_MULTIPLIER", 2.0),
		IdlePollInterval:      getEnvDuration("MARINARA_IDLE_POLL_INTERVAL", 15*time.Second),
		FFmpegBin:             getEnv("MARINARA_FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:            getEnv("MARINARA_FFPROBE_BIN", "ffprobe"),

		EvictionInterval:  getEnvDuration("MARINARA_EVICTION_INTERVAL", time.Minute),
		SegmentMaxAge:     getEnvDuration("MARINARA_SEGMENT_MAX_AGE", 90*time.Minute),
		DiskHighWatermark: getEnvFloat("MARINARA_DISK_HIGH_WATERMARK", 0.80),
		SweepManifestPath: getEnv("MARINARA_SWEEP_MANIFEST", "manifest.yaml"),
		SweepGracePeriod:  getEnvDuration("MARINARA_SWEEP_GRACE_PERIOD", 2*time.Hour),

		PlaylistRotateEntries: getEnvInt("MARINARA_PLAYLIST_ROTATE_ENTRIES", 50),

		TracingEnabled:    getEnvBool("MARINARA_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("MARINARA_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("MARINARA_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.PlaylistSourceURL == "" {
		return nil, fmt.Errorf("MARINARA_PLAYLIST_SOURCE_URL must be provided")
	}

	if len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("MARINARA_ALLOWED_EXTENSIONS must list at least one extension")
	}
	for i, ext := range cfg.AllowedExtensions {
		cfg.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}

	if cfg.GasTankLimitSeconds <= 0 {
		return nil, fmt.Errorf("MARINARA_GAS_TANK_LIMIT_SECONDS must be positive, got %v", cfg.GasTankLimitSeconds)
	}

	if cfg.DiskHighWatermark <= 0 || cfg.DiskHighWatermark > 1 {
		return nil, fmt.Errorf("MARINARA_DISK_HIGH_WATERMARK must be in (0, 1], got %v", cfg.DiskHighWatermark)
	}

	if cfg.SweepGracePeriod < 0 {
		return nil, fmt.Errorf("MARINARA_SWEEP_GRACE_PERIOD must not be negative, got %v", cfg.SweepGracePeriod)
	}

	if cfg.PlaylistRotateEntries < 1 {
		return nil, fmt.Errorf("MARINARA_PLAYLIST_ROTATE_ENTRIES must be at least 1, got %d", cfg.PlaylistRotateEntries)
	}

	return cfg, nil
}

// MaxTrackLengthSeconds returns the longest track duration worth rendering.
// Always half the gas tank limit, so one track can never fill the whole buffer.
func (c *Config) MaxTrackLengthSeconds() float64 {
	return c.GasTankLimitSeconds / 2.0
}

// AllowsExtension reports whether ext (with or without dot, any case) is playable.
func (c *Config) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvFloat returns the float value of key, or def when unset or unparsable.
func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvBool returns the boolean value of key, or def when unset or unparsable.
func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

// getEnvDuration returns the duration value of key (time.ParseDuration syntax),
// or def when unset or unparsable.
func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvList returns the comma-separated list value of key, or def when unset.
func getEnvList(key string, def []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
