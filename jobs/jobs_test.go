package jobs_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/joblog"
	"github.com/warp/attendance-engine/jobs"
	"github.com/warp/attendance-engine/settings"
	"github.com/warp/attendance-engine/store/memory"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testSettings() settings.Settings {
	cfg := settings.Default()
	cfg.ChunkSize = 2 // force multiple chunks even in small fixtures
	cfg.OvertimeThreshold = 2.5
	return cfg
}

func seedShift(t *testing.T, st *memory.Store, user string, in, out time.Time) {
	t.Helper()
	ctx := context.Background()
	if _, err := st.AppendPunch(ctx, attendance.PunchEvent{
		UserID: attendance.UserID(user), Type: attendance.PunchIn, Timestamp: in,
	}); err != nil {
		t.Fatalf("seed in punch: %v", err)
	}
	if _, err := st.AppendPunch(ctx, attendance.PunchEvent{
		UserID: attendance.UserID(user), Type: attendance.PunchOut, Timestamp: out,
	}); err != nil {
		t.Fatalf("seed out punch: %v", err)
	}
}

func day(d int, hour, min int) time.Time {
	return time.Date(2026, time.January, d, hour, min, 0, 0, time.UTC)
}

// =============================================================================
// END-TO-END PIPELINE
// =============================================================================

func TestLauncher_FullPipeline(t *testing.T) {
	// GIVEN: Punches for two users in January; u1 accumulates 3h of
	//        overtime against a 2.5h monthly threshold, u3 none
	// WHEN: Running daily-summary, monthly-summary, overtime-report in order
	// THEN: Daily and monthly summaries exist, u1's report is confirmed and
	//       u3's is approved

	st := memory.New()
	seedShift(t, st, "u1", day(7, 9, 0), day(7, 19, 0))  // 10h, 2h overtime
	seedShift(t, st, "u1", day(8, 9, 0), day(8, 18, 0))  // 9h, 1h overtime
	seedShift(t, st, "u3", day(7, 10, 0), day(7, 14, 0)) // 4h, no overtime

	launcher, err := jobs.NewLauncher(st, testSettings(), joblog.NewMemoryRecorder(), quietLogger())
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	ctx := context.Background()

	daily, err := launcher.Run(ctx, jobs.JobDailySummary)
	if err != nil {
		t.Fatalf("daily run: %v", err)
	}
	if daily.Status != "COMPLETED" {
		t.Fatalf("daily status = %s, error = %s", daily.Status, daily.Error)
	}
	if daily.ItemsRead != 6 || daily.ItemsWritten != 3 || daily.ItemsSkipped != 0 {
		t.Errorf("daily counts = read %d / written %d / skipped %d, want 6/3/0",
			daily.ItemsRead, daily.ItemsWritten, daily.ItemsSkipped)
	}

	monthly, err := launcher.Run(ctx, jobs.JobMonthlySummary)
	if err != nil {
		t.Fatalf("monthly run: %v", err)
	}
	if monthly.ItemsWritten != 2 {
		t.Errorf("monthly wrote %d summaries, want 2 (one per user-month)", monthly.ItemsWritten)
	}

	report, err := launcher.Run(ctx, jobs.JobOvertimeReport)
	if err != nil {
		t.Fatalf("report run: %v", err)
	}
	if report.ItemsRead != 2 || report.ItemsWritten != 2 {
		t.Errorf("report counts = read %d / written %d, want 2/2",
			report.ItemsRead, report.ItemsWritten)
	}

	jan := day(1, 0, 0)

	u1Month, err := st.FindSummary(ctx, "u1", attendance.SummaryMonthly, jan)
	if err != nil || u1Month == nil {
		t.Fatalf("u1 monthly summary missing: %v", err)
	}
	if got := u1Month.Total.String(); got != "19.00" {
		t.Errorf("u1 monthly total = %s, want 19.00", got)
	}
	if got := u1Month.Overtime.String(); got != "3.00" {
		t.Errorf("u1 monthly overtime = %s, want 3.00", got)
	}

	reports, err := st.ListReportsForMonth(ctx, jan)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].UserID != "u1" || reports[0].Status != attendance.StatusConfirmed {
		t.Errorf("u1 report = %s/%s, want u1/confirmed", reports[0].UserID, reports[0].Status)
	}
	if reports[1].UserID != "u3" || reports[1].Status != attendance.StatusApproved {
		t.Errorf("u3 report = %s/%s, want u3/approved", reports[1].UserID, reports[1].Status)
	}
}

func TestLauncher_RerunIsIdempotent(t *testing.T) {
	// GIVEN: A fully aggregated data set
	// WHEN: Running all three jobs a second time
	// THEN: No new summary rows appear and report identities are stable

	st := memory.New()
	seedShift(t, st, "u1", day(7, 9, 0), day(7, 19, 0))

	launcher, err := jobs.NewLauncher(st, testSettings(), joblog.NewMemoryRecorder(), quietLogger())
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	ctx := context.Background()

	for _, name := range jobs.Names() {
		if _, err := launcher.Run(ctx, name); err != nil {
			t.Fatalf("first %s run: %v", name, err)
		}
	}

	jan := day(1, 0, 0)
	before, err := st.ListReportsForMonth(ctx, jan)
	if err != nil || len(before) != 1 {
		t.Fatalf("expected one report after first pass, got %d (err %v)", len(before), err)
	}

	daily2, err := launcher.Run(ctx, jobs.JobDailySummary)
	if err != nil {
		t.Fatalf("second daily run: %v", err)
	}
	if daily2.ItemsWritten != 0 {
		t.Errorf("second daily run wrote %d rows, want 0", daily2.ItemsWritten)
	}

	monthly2, err := launcher.Run(ctx, jobs.JobMonthlySummary)
	if err != nil {
		t.Fatalf("second monthly run: %v", err)
	}
	if monthly2.ItemsWritten != 0 {
		t.Errorf("second monthly run wrote %d rows, want 0", monthly2.ItemsWritten)
	}

	if _, err := launcher.Run(ctx, jobs.JobOvertimeReport); err != nil {
		t.Fatalf("second report run: %v", err)
	}

	after, err := st.ListReportsForMonth(ctx, jan)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("re-run duplicated reports: got %d", len(after))
	}
	if after[0].ID != before[0].ID {
		t.Errorf("re-run changed report identity: %s -> %s", before[0].ID, after[0].ID)
	}
	if !after[0].CreatedAt.Equal(before[0].CreatedAt) {
		t.Errorf("re-run changed created_at: %v -> %v", before[0].CreatedAt, after[0].CreatedAt)
	}
}

func TestLauncher_MonthlyCountsOnlyPersistedRows(t *testing.T) {
	// GIVEN: Two shifts of one user-month and a chunk size large enough
	//        that both trigger punches land in the same chunk
	// WHEN: Running the monthly job after the daily one
	// THEN: Both triggers produce a roll-up but only one row survives the
	//       unique key, and items_written reports that one row

	st := memory.New()
	seedShift(t, st, "u1", day(7, 9, 0), day(7, 18, 0))
	seedShift(t, st, "u1", day(8, 9, 0), day(8, 18, 0))

	cfg := testSettings()
	cfg.ChunkSize = 10
	launcher, err := jobs.NewLauncher(st, cfg, joblog.NewMemoryRecorder(), quietLogger())
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	ctx := context.Background()

	if _, err := launcher.Run(ctx, jobs.JobDailySummary); err != nil {
		t.Fatalf("daily run: %v", err)
	}
	monthly, err := launcher.Run(ctx, jobs.JobMonthlySummary)
	if err != nil {
		t.Fatalf("monthly run: %v", err)
	}
	if monthly.ItemsWritten != 1 {
		t.Errorf("monthly wrote %d rows, want 1 (duplicate month dropped on insert)", monthly.ItemsWritten)
	}

	sums, err := st.ListUserSummaries(ctx, "u1", attendance.SummaryMonthly, day(1, 0, 0), day(1, 0, 0).AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(sums) != 1 {
		t.Errorf("got %d monthly rows, want 1", len(sums))
	}
}

func TestLauncher_RecordsItemFailures(t *testing.T) {
	// GIVEN: A malformed pairing (out punch equal to the in punch)
	// WHEN: Running the daily job
	// THEN: The run completes, the item is counted as skipped, and the
	//       recorder holds a validation record for the step

	st := memory.New()
	seedShift(t, st, "u1", day(7, 9, 0), day(7, 9, 0))

	rec := joblog.NewMemoryRecorder()
	launcher, err := jobs.NewLauncher(st, testSettings(), rec, quietLogger())
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}

	run, err := launcher.Run(context.Background(), jobs.JobDailySummary)
	if err != nil {
		t.Fatalf("daily run: %v", err)
	}
	if run.Status != "COMPLETED" {
		t.Fatalf("status = %s, want COMPLETED (failure tolerated)", run.Status)
	}
	if run.ItemsSkipped != 1 {
		t.Errorf("skipped = %d, want 1", run.ItemsSkipped)
	}

	counts := rec.StepCounts(jobs.JobDailySummary)
	if counts["daily-aggregation"] != 1 {
		t.Errorf("recorded counts = %v, want one daily-aggregation failure", counts)
	}
	if len(rec.Records) != 1 || rec.Records[0].Kind != joblog.KindValidation {
		t.Errorf("unexpected records: %+v", rec.Records)
	}
}

func TestLauncher_UnknownJob(t *testing.T) {
	launcher, err := jobs.NewLauncher(memory.New(), testSettings(), joblog.NewMemoryRecorder(), quietLogger())
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}

	run, err := launcher.Run(context.Background(), "no-such-job")
	if err == nil {
		t.Fatal("expected an error for an unknown job")
	}
	if run.ID != 0 {
		t.Errorf("unknown job must not create a run record, got id %d", run.ID)
	}
}

func TestLauncher_RunHistoryIsMonotonic(t *testing.T) {
	st := memory.New()
	launcher, err := jobs.NewLauncher(st, testSettings(), joblog.NewMemoryRecorder(), quietLogger())
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	ctx := context.Background()

	r1, err := launcher.Run(ctx, jobs.JobDailySummary)
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	r2, err := launcher.Run(ctx, jobs.JobDailySummary)
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if r2.ID <= r1.ID {
		t.Errorf("run ids not monotonic: %d then %d", r1.ID, r2.ID)
	}

	runs, err := st.ListJobRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != r2.ID {
		t.Errorf("history = %+v, want newest first", runs)
	}
}

func TestLauncher_RejectsInvalidSettings(t *testing.T) {
	cfg := settings.Default()
	cfg.ChunkSize = 0

	if _, err := jobs.NewLauncher(memory.New(), cfg, joblog.NewMemoryRecorder(), quietLogger()); err == nil {
		t.Fatal("expected invalid settings to be rejected")
	}
}
