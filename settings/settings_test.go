package settings_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/warp/attendance-engine/settings"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := settings.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.ChunkSize != 1000 || cfg.SkipLimit != 100 || cfg.RetryLimit != 3 {
		t.Errorf("unexpected pipeline defaults: %+v", cfg)
	}
	if cfg.Timeout() != time.Hour {
		t.Errorf("timeout = %v, want 1h", cfg.Timeout())
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*settings.Settings)
	}{
		{"zero chunk size", func(s *settings.Settings) { s.ChunkSize = 0 }},
		{"chunk size too large", func(s *settings.Settings) { s.ChunkSize = 20000 }},
		{"negative skip limit", func(s *settings.Settings) { s.SkipLimit = -1 }},
		{"retry limit too large", func(s *settings.Settings) { s.RetryLimit = 11 }},
		{"zero timeout", func(s *settings.Settings) { s.TimeoutSeconds = 0 }},
		{"zero standard day", func(s *settings.Settings) { s.StandardDailyHours = 0 }},
		{"negative threshold", func(s *settings.Settings) { s.OvertimeThreshold = -1 }},
		{"zero workers", func(s *settings.Settings) { s.Workers = 0 }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := settings.Default()
			c.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, settings.ErrInvalidSettings) {
				t.Errorf("expected ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	// GIVEN: A YAML file overriding only two keys
	// WHEN: Loading it
	// THEN: Overridden keys apply, everything else keeps its default

	path := filepath.Join(t.TempDir(), "settings.yaml")
	yaml := "chunk_size: 50\nstandard_daily_hours: 7.5\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cfg, err := settings.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 50 {
		t.Errorf("chunk size = %d, want 50", cfg.ChunkSize)
	}
	if cfg.StandardDailyHours != 7.5 {
		t.Errorf("standard day = %v, want 7.5", cfg.StandardDailyHours)
	}
	if cfg.SkipLimit != 100 || cfg.Workers != 5 {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: 0\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	_, err := settings.Load(path)
	if !errors.Is(err, settings.ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestThresholdsConversion(t *testing.T) {
	cfg := settings.Default()
	th := cfg.Thresholds()

	if got := th.Overtime.String(); got != "45.00" {
		t.Errorf("overtime threshold = %s, want 45.00", got)
	}
	if got := th.LateNight.String(); got != "20.00" {
		t.Errorf("late night threshold = %s, want 20.00", got)
	}
	if got := th.Holiday.String(); got != "15.00" {
		t.Errorf("holiday threshold = %s, want 15.00", got)
	}
	if got := cfg.StandardDay().String(); got != "8.00" {
		t.Errorf("standard day = %s, want 8.00", got)
	}
}
