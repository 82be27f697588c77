/*
stages.go - Readers and writers binding the stores to the pipeline

Each job is one reader/processor/writer triple:

  daily-summary     punch events by id      -> DailyAggregator        -> summary insert
  monthly-summary   punch events by user/ts -> MonthlyAggregator      -> summary insert
  overtime-report   monthly summaries       -> OvertimeRiskClassifier -> report upsert

Readers keep a cursor so a run never re-delivers a row; writers delegate
to the store's transactional bulk methods, so every chunk is one
transaction.
*/
package jobs

import (
	"context"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/store"
)

// =============================================================================
// READERS
// =============================================================================

// punchIDReader pages punch events in primary-key order.
type punchIDReader struct {
	store   store.PunchEventStore
	afterID int64
}

func (r *punchIDReader) ReadChunk(ctx context.Context, limit int) ([]attendance.PunchEvent, error) {
	events, err := r.store.ListPunchesAfter(ctx, r.afterID, limit)
	if err != nil {
		return nil, err
	}
	if len(events) > 0 {
		r.afterID = events[len(events)-1].ID
	}
	return events, nil
}

// punchUserReader pages punch events ordered by (user, timestamp) for the
// month-scoped stage. The punch table is read-only input, so offset
// pagination is stable within a run.
type punchUserReader struct {
	store  store.PunchEventStore
	offset int
}

func (r *punchUserReader) ReadChunk(ctx context.Context, limit int) ([]attendance.PunchEvent, error) {
	events, err := r.store.ListPunchesByUserOrder(ctx, r.offset, limit)
	if err != nil {
		return nil, err
	}
	r.offset += len(events)
	return events, nil
}

// monthlySummaryReader pages monthly summaries for the report stage.
// Summaries are insert-only and this stage writes reports, not summaries,
// so offset pagination is stable here too.
type monthlySummaryReader struct {
	store  store.SummaryStore
	offset int
}

func (r *monthlySummaryReader) ReadChunk(ctx context.Context, limit int) ([]attendance.Summary, error) {
	sums, err := r.store.ListSummariesByType(ctx, attendance.SummaryMonthly, r.offset, limit)
	if err != nil {
		return nil, err
	}
	r.offset += len(sums)
	return sums, nil
}

// =============================================================================
// WRITERS
// =============================================================================

type summaryWriter struct {
	store store.SummaryStore
}

func (w *summaryWriter) WriteChunk(ctx context.Context, sums []attendance.Summary) (int, error) {
	return w.store.PutSummaries(ctx, sums)
}

type reportWriter struct {
	store store.ReportStore
}

func (w *reportWriter) WriteChunk(ctx context.Context, reports []attendance.OvertimeReport) (int, error) {
	// Every report row lands, as an insert or an in-place update.
	if err := w.store.UpsertReports(ctx, reports); err != nil {
		return 0, err
	}
	return len(reports), nil
}

// =============================================================================
// CALENDAR
// =============================================================================

// loadCalendar snapshots the holiday store into a fixed calendar for one
// run, so every chunk classifies against the same holiday set.
func loadCalendar(ctx context.Context, holidays store.HolidayStore) (attendance.HolidayCalendar, error) {
	list, err := holidays.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	return attendance.NewListCalendar(list), nil
}
