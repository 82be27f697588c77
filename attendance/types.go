/*
Package attendance contains the domain model and the three aggregation
processors of the attendance engine.

PURPOSE:
  Raw time-clock punch events come in; daily and monthly attendance
  summaries and monthly overtime-risk reports come out. This package holds
  the records flowing through that pipeline and the pure aggregation logic.
  Persistence lives in store/, the chunk loop in pipeline/.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours: a decimal quantity of worked hours (2-decimal, half-up)
  - PunchEvent: an immutable clock-in/clock-out fact
  - Summary: a per-user daily or monthly aggregate row
  - OvertimeReport: a per-user-per-month risk classification

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all hour arithmetic, never float math
  2. Immutability: punch events and summaries are written once
  3. Upsert-by-natural-key: reports are the only mutable record, keyed
     by (user, month)

SEE ALSO:
  - calendar.go: work dates, late-night windows, holiday calendar
  - daily.go / monthly.go / report.go: the processors
*/
package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - Decimal quantity of worked hours
// =============================================================================

// Hours is a non-negative quantity of hours. Arithmetic stays in decimal;
// Round2 applies the 2-decimal half-up rounding used for every persisted
// hour field.
type Hours struct {
	d decimal.Decimal
}

func HoursFromFloat(v float64) Hours { return Hours{d: decimal.NewFromFloat(v)} }

func HoursFromDecimal(d decimal.Decimal) Hours { return Hours{d: d} }

// HoursFromDuration converts an elapsed duration to hours at second
// precision.
func HoursFromDuration(dur time.Duration) Hours {
	secs := decimal.NewFromInt(int64(dur / time.Second))
	return Hours{d: secs.Div(decimal.NewFromInt(3600))}
}

// ParseHours parses a stored decimal string. Empty or malformed input is
// treated as zero (null hour fields roll up as 0).
func ParseHours(s string) Hours {
	if s == "" {
		return Hours{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Hours{}
	}
	return Hours{d: d}
}

func ZeroHours() Hours { return Hours{} }

func (h Hours) Add(o Hours) Hours { return Hours{d: h.d.Add(o.d)} }
func (h Hours) Sub(o Hours) Hours { return Hours{d: h.d.Sub(o.d)} }

// Round2 rounds to 2 decimal places. All hour values in this system are
// non-negative, so decimal's round-half-away-from-zero is exactly half-up.
func (h Hours) Round2() Hours { return Hours{d: h.d.Round(2)} }

func (h Hours) GreaterThan(o Hours) bool { return h.d.GreaterThan(o.d) }
func (h Hours) IsPositive() bool         { return h.d.IsPositive() }
func (h Hours) IsNegative() bool         { return h.d.IsNegative() }
func (h Hours) IsZero() bool             { return h.d.IsZero() }
func (h Hours) Equal(o Hours) bool       { return h.d.Equal(o.d) }
func (h Hours) String() string           { return h.d.StringFixed(2) }
func (h Hours) Decimal() decimal.Decimal { return h.d }

func (h Hours) Float64() float64 {
	f, _ := h.d.Float64()
	return f
}

// MaxZero clamps negative values to zero (overtime = max(0, total - standard)).
func (h Hours) MaxZero() Hours {
	if h.d.IsNegative() {
		return Hours{}
	}
	return h
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string

// =============================================================================
// PUNCH EVENT - Immutable clock-in/out fact
// =============================================================================

type PunchType string

const (
	PunchIn  PunchType = "in"
	PunchOut PunchType = "out"
)

// PunchEvent is created by the clock-in UI and never mutated. The
// coordinates are recorded for audit but ignored by aggregation.
type PunchEvent struct {
	ID        int64
	UserID    UserID
	Type      PunchType
	Timestamp time.Time
	Latitude  float64
	Longitude float64
}

// =============================================================================
// SUMMARY - Daily and monthly aggregate rows
// =============================================================================

type SummaryType string

const (
	SummaryDaily   SummaryType = "daily"
	SummaryMonthly SummaryType = "monthly"
)

// Summary is one aggregate row per (user, target date). Daily rows target a
// calendar day; monthly rows target the first day of the month. Written once
// and never mutated; re-runs must not duplicate a (user, type, target) key.
type Summary struct {
	ID         string
	UserID     UserID
	Type       SummaryType
	TargetDate time.Time
	Total      Hours
	Overtime   Hours
	LateNight  Hours
	Holiday    Hours
	CreatedAt  time.Time
}

// =============================================================================
// OVERTIME REPORT - Mutable per-user-per-month classification
// =============================================================================

type ReportStatus string

const (
	// StatusApproved means no overtime, late-night, or holiday hours at all.
	StatusApproved ReportStatus = "approved"
	// StatusDraft means some hours were logged but all below thresholds.
	StatusDraft ReportStatus = "draft"
	// StatusConfirmed means at least one threshold was exceeded and the
	// report needs review.
	StatusConfirmed ReportStatus = "confirmed"
)

// OvertimeReport is the only mutable record: re-processing a month updates
// the existing row in place, matched by (user, month).
type OvertimeReport struct {
	ID        string
	UserID    UserID
	Month     time.Time
	Overtime  Hours
	LateNight Hours
	Holiday   Hours
	Status    ReportStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// STORE SOURCES - Read interfaces consumed by the processors
// =============================================================================
// The processors receive these at construction; store.Store implements all
// of them. Writes go through the pipeline writer, never from a processor.

type PunchSource interface {
	// ListUserPunchesBetween returns a user's punch events with
	// from <= Timestamp < to, ordered by timestamp then id.
	ListUserPunchesBetween(ctx context.Context, user UserID, from, to time.Time) ([]PunchEvent, error)
}

type SummarySource interface {
	// FindSummary returns the summary for (user, type, target date), or nil.
	FindSummary(ctx context.Context, user UserID, typ SummaryType, target time.Time) (*Summary, error)

	// ListUserSummaries returns summaries of one type with
	// from <= TargetDate < to, ordered by target date.
	ListUserSummaries(ctx context.Context, user UserID, typ SummaryType, from, to time.Time) ([]Summary, error)
}

type ReportSource interface {
	// FindReport returns the report for (user, month start), or nil.
	FindReport(ctx context.Context, user UserID, month time.Time) (*OvertimeReport, error)
}
