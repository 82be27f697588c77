/*
report.go - OvertimeRiskClassifier

PURPOSE:
  Derives the monthly overtime report from a monthly summary and
  classifies it against the configured thresholds. Unlike summaries the
  report is mutable: re-processing a month updates the existing row in
  place, keeping its identity and creation timestamp.

CLASSIFICATION (priority order):
  confirmed  any of overtime/late-night/holiday exceeds its threshold
  draft      any of the three totals is positive
  approved   all three are zero
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/attendance-engine/pipeline"
)

// Thresholds are the monthly hour limits above which a report needs
// review. Settings own the defaults (45/20/15); these are plain values so
// a job run sees one immutable copy.
type Thresholds struct {
	Overtime  Hours
	LateNight Hours
	Holiday   Hours
}

// Classify applies the priority order to one set of monthly totals.
func (t Thresholds) Classify(overtime, lateNight, holiday Hours) ReportStatus {
	switch {
	case overtime.GreaterThan(t.Overtime),
		lateNight.GreaterThan(t.LateNight),
		holiday.GreaterThan(t.Holiday):
		return StatusConfirmed
	case overtime.IsPositive(), lateNight.IsPositive(), holiday.IsPositive():
		return StatusDraft
	default:
		return StatusApproved
	}
}

// OvertimeRiskClassifier consumes monthly summaries and produces report
// rows for the upsert writer.
type OvertimeRiskClassifier struct {
	Reports    ReportSource
	Thresholds Thresholds

	Now func() time.Time
}

func (c *OvertimeRiskClassifier) Process(ctx context.Context, s Summary) pipeline.Result[OvertimeReport] {
	if s.Type != SummaryMonthly {
		return pipeline.Skipped[OvertimeReport]()
	}

	month := MonthStart(s.TargetDate)

	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}

	report := OvertimeReport{
		ID:        uuid.NewString(),
		UserID:    s.UserID,
		Month:     month,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := c.Reports.FindReport(ctx, s.UserID, month)
	if err != nil {
		return pipeline.Failed[OvertimeReport](fmt.Errorf("lookup report: %w", err))
	}
	if existing != nil {
		report.ID = existing.ID
		report.CreatedAt = existing.CreatedAt
	}

	report.Overtime = s.Overtime
	report.LateNight = s.LateNight
	report.Holiday = s.Holiday
	report.Status = c.Thresholds.Classify(s.Overtime, s.LateNight, s.Holiday)

	return pipeline.Produced(report)
}
