/*
Package settings provides the validated tuning parameters of the engine.

PURPOSE:
  One immutable Settings value is constructed at startup (defaults,
  optionally overlaid by a YAML file) and passed by value into the job
  launcher and stages. There is no shared mutable configuration state.

VALIDATION:
  Ranges are enforced with validator struct tags. An out-of-range value
  is a ConfigurationError and blocks job start; nothing falls back
  silently.

YAML SCHEMA:
  chunk_size: 1000
  skip_limit: 100
  retry_limit: 3
  timeout_seconds: 3600
  standard_daily_hours: 8.0
  overtime_threshold: 45.0
  late_night_threshold: 20.0
  holiday_threshold: 15.0
  workers: 5
*/
package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/warp/attendance-engine/attendance"
)

// ErrInvalidSettings is the configuration-error kind: fatal at startup.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings carries every tunable of the pipeline. Construct via Default()
// or Load(); treat as immutable afterwards.
type Settings struct {
	// ChunkSize is the number of items read, processed, and committed per
	// transaction.
	ChunkSize int `yaml:"chunk_size" validate:"gte=1,lte=10000"`

	// SkipLimit is the number of tolerated per-item failures before a run
	// aborts.
	SkipLimit int `yaml:"skip_limit" validate:"gte=0"`

	// RetryLimit is the number of chunk-level retries for transient write
	// failures.
	RetryLimit int `yaml:"retry_limit" validate:"gte=0,lte=10"`

	// TimeoutSeconds bounds one job run end to end.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gt=0"`

	// StandardDailyHours is the daily threshold above which time counts
	// as overtime.
	StandardDailyHours float64 `yaml:"standard_daily_hours" validate:"gt=0"`

	// Monthly review thresholds (hours/month).
	OvertimeThreshold  float64 `yaml:"overtime_threshold" validate:"gte=0"`
	LateNightThreshold float64 `yaml:"late_night_threshold" validate:"gte=0"`
	HolidayThreshold   float64 `yaml:"holiday_threshold" validate:"gte=0"`

	// Workers bounds how many job runs may execute concurrently.
	Workers int `yaml:"workers" validate:"gte=1,lte=32"`
}

func Default() Settings {
	return Settings{
		ChunkSize:          1000,
		SkipLimit:          100,
		RetryLimit:         3,
		TimeoutSeconds:     3600,
		StandardDailyHours: 8.0,
		OvertimeThreshold:  45.0,
		LateNightThreshold: 20.0,
		HolidayThreshold:   15.0,
		Workers:            5,
	}
}

// Load overlays the YAML file at path onto the defaults and validates the
// result. Missing keys keep their default.
func Load(path string) (Settings, error) {
	s := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("%w: parse %s: %v", ErrInvalidSettings, path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

var validate = validator.New()

// Validate checks every range constraint. The returned error wraps
// ErrInvalidSettings and names the first offending field.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: field %s fails %q (value %v)",
			ErrInvalidSettings, verrs[0].Field(), verrs[0].Tag(), verrs[0].Value())
	}
	return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
}

func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Thresholds converts the configured monthly limits into the classifier's
// decimal form.
func (s Settings) Thresholds() attendance.Thresholds {
	return attendance.Thresholds{
		Overtime:  attendance.HoursFromFloat(s.OvertimeThreshold),
		LateNight: attendance.HoursFromFloat(s.LateNightThreshold),
		Holiday:   attendance.HoursFromFloat(s.HolidayThreshold),
	}
}

// StandardDay returns the daily overtime threshold as Hours.
func (s Settings) StandardDay() attendance.Hours {
	return attendance.HoursFromFloat(s.StandardDailyHours)
}
