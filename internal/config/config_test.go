package config

import "testing"

func TestLoadRequiresPlaylistSourceURL(t *testing.T) {
	t.Setenv("MARINARA_PLAYLIST_SOURCE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail without a playlist source URL")
	}

	t.Setenv("MARINARA_PLAYLIST_SOURCE_URL", "http://example.com/list.txt")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PlaylistSourceURL != "http://example.com/list.txt" {
		t.Fatalf("unexpected playlist source URL: %q", cfg.PlaylistSourceURL)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("MARINARA_PLAYLIST_SOURCE_URL", "http://example.com/list.txt")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.GasTankLimitSeconds != 3600.0 {
		t.Errorf("gas tank limit default: got %v, want 3600", cfg.GasTankLimitSeconds)
	}
	if cfg.TargetSpeedMultiplier != 2.0 {
		t.Errorf("target speed default: got %v, want 2", cfg.TargetSpeedMultiplier)
	}
	if cfg.DiskHighWatermark != 0.80 {
		t.Errorf("disk watermark default: got %v, want 0.80", cfg.DiskHighWatermark)
	}
	if got := cfg.SegmentMaxAge.Minutes(); got != 90 {
		t.Errorf("segment max age default: got %v minutes, want 90", got)
	}
	if !cfg.AllowsExtension("mp3") || !cfg.AllowsExtension(".FLAC") {
		t.Error("expected default extension set to allow mp3 and flac")
	}
	if cfg.AllowsExtension("exe") {
		t.Error("expected default extension set to reject exe")
	}
}

func TestLoadNormalizesExtensions(t *testing.T) {
	t.Setenv("MARINARA_PLAYLIST_SOURCE_URL", "http://example.com/list.txt")
	t.Setenv("MARINARA_ALLOWED_EXTENSIONS", ".MP3, ogg ,ZIP")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := []string{"mp3", "ogg", "zip"}
	if len(cfg.AllowedExtensions) != len(want) {
		t.Fatalf("got %v, want %v", cfg.AllowedExtensions, want)
	}
	for i := range want {
		if cfg.AllowedExtensions[i] != want[i] {
			t.Fatalf("got %v, want %v", cfg.AllowedExtensions, want)
		}
	}
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	t.Setenv("MARINARA_PLAYLIST_SOURCE_URL", "http://example.com/list.txt")

	t.Setenv("MARINARA_GAS_TANK_LIMIT_SECONDS", "-10")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail on negative gas tank limit")
	}
	t.Setenv("MARINARA_GAS_TANK_LIMIT_SECONDS", "600")

	t.Setenv("MARINARA_DISK_HIGH_WATERMARK", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail on watermark above 1")
	}
}

func TestMaxTrackLengthIsHalfTheTank(t *testing.T) {
	t.Setenv("MARINARA_PLAYLIST_SOURCE_URL", "http://example.com/list.txt")
	t.Setenv("MARINARA_GAS_TANK_LIMIT_SECONDS", "600")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got := cfg.MaxTrackLengthSeconds(); got != 300 {
		t.Fatalf("max track length: got %v, want 300", got)
	}
}
