package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/store/memory"
)

func defaultThresholds() attendance.Thresholds {
	return attendance.Thresholds{
		Overtime:  attendance.HoursFromFloat(45),
		LateNight: attendance.HoursFromFloat(20),
		Holiday:   attendance.HoursFromFloat(15),
	}
}

func monthlySummary(user string, month time.Time, overtime, lateNight, holiday float64) attendance.Summary {
	return attendance.Summary{
		UserID:     attendance.UserID(user),
		Type:       attendance.SummaryMonthly,
		TargetDate: month,
		Total:      attendance.HoursFromFloat(160),
		Overtime:   attendance.HoursFromFloat(overtime).Round2(),
		LateNight:  attendance.HoursFromFloat(lateNight).Round2(),
		Holiday:    attendance.HoursFromFloat(holiday).Round2(),
	}
}

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestThresholdsClassify(t *testing.T) {
	th := defaultThresholds()

	cases := []struct {
		name                         string
		overtime, lateNight, holiday float64
		want                         attendance.ReportStatus
	}{
		{"all zero", 0, 0, 0, attendance.StatusApproved},
		{"overtime below threshold", 5, 0, 0, attendance.StatusDraft},
		{"overtime at threshold", 45, 0, 0, attendance.StatusDraft},
		{"overtime above threshold", 46, 0, 0, attendance.StatusConfirmed},
		{"late night above threshold", 0, 20.5, 0, attendance.StatusConfirmed},
		{"holiday above threshold", 0, 0, 16, attendance.StatusConfirmed},
		{"one over is enough", 1, 1, 16, attendance.StatusConfirmed},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := th.Classify(
				attendance.HoursFromFloat(c.overtime),
				attendance.HoursFromFloat(c.lateNight),
				attendance.HoursFromFloat(c.holiday),
			)
			if got != c.want {
				t.Errorf("Classify(%v, %v, %v) = %s, want %s",
					c.overtime, c.lateNight, c.holiday, got, c.want)
			}
		})
	}
}

// =============================================================================
// CLASSIFIER TESTS
// =============================================================================

func TestOvertimeRiskClassifier_ProducesReport(t *testing.T) {
	// GIVEN: A monthly summary with 46 overtime hours
	// WHEN: Classifying it
	// THEN: A confirmed report for (user, month) carrying the totals

	st := memory.New()
	cls := &attendance.OvertimeRiskClassifier{Reports: st, Thresholds: defaultThresholds()}

	month := ts(2026, time.January, 1, 0, 0)
	res := cls.Process(context.Background(), monthlySummary("u1", month, 46, 2, 0))

	report, ok := res.Output()
	if !ok {
		t.Fatalf("expected a produced report, got err=%v", res.Err())
	}
	if report.Status != attendance.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", report.Status)
	}
	if got := report.Overtime.String(); got != "46.00" {
		t.Errorf("overtime = %s, want 46.00", got)
	}
	if !report.Month.Equal(month) {
		t.Errorf("month = %v, want %v", report.Month, month)
	}
	if report.ID == "" {
		t.Error("expected a generated report ID")
	}
}

func TestOvertimeRiskClassifier_RerunKeepsIdentity(t *testing.T) {
	// GIVEN: An existing report for (user, month)
	// WHEN: Re-classifying the month with new totals
	// THEN: The produced report keeps the existing ID and CreatedAt so the
	//       upsert updates in place instead of creating a second row

	st := memory.New()
	created := ts(2026, time.February, 1, 3, 0)
	cls := &attendance.OvertimeRiskClassifier{
		Reports:    st,
		Thresholds: defaultThresholds(),
		Now:        func() time.Time { return created },
	}

	month := ts(2026, time.January, 1, 0, 0)

	first := cls.Process(context.Background(), monthlySummary("u1", month, 5, 0, 0))
	rep1, ok := first.Output()
	if !ok {
		t.Fatalf("first run should produce, got err=%v", first.Err())
	}
	if rep1.Status != attendance.StatusDraft {
		t.Errorf("first status = %s, want draft", rep1.Status)
	}
	if err := st.UpsertReports(context.Background(), []attendance.OvertimeReport{rep1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	cls.Now = func() time.Time { return created.Add(24 * time.Hour) }
	second := cls.Process(context.Background(), monthlySummary("u1", month, 50, 0, 0))
	rep2, ok := second.Output()
	if !ok {
		t.Fatalf("second run should produce, got err=%v", second.Err())
	}

	if rep2.ID != rep1.ID {
		t.Errorf("re-run changed report ID: %s -> %s", rep1.ID, rep2.ID)
	}
	if !rep2.CreatedAt.Equal(rep1.CreatedAt) {
		t.Errorf("re-run changed CreatedAt: %v -> %v", rep1.CreatedAt, rep2.CreatedAt)
	}
	if rep2.Status != attendance.StatusConfirmed {
		t.Errorf("second status = %s, want confirmed", rep2.Status)
	}
	if !rep2.UpdatedAt.After(rep1.UpdatedAt) {
		t.Error("expected UpdatedAt to advance on re-run")
	}
}

func TestOvertimeRiskClassifier_DailySummaryFiltered(t *testing.T) {
	// GIVEN: A daily summary
	// WHEN: Classifying it
	// THEN: Skipped; only monthly summaries feed reports

	st := memory.New()
	cls := &attendance.OvertimeRiskClassifier{Reports: st, Thresholds: defaultThresholds()}

	s := monthlySummary("u1", ts(2026, time.January, 7, 0, 0), 1, 0, 0)
	s.Type = attendance.SummaryDaily

	res := cls.Process(context.Background(), s)
	if !res.IsSkipped() {
		t.Errorf("expected skipped, got err=%v", res.Err())
	}
}
