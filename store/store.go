/*
Package store defines the persistence interfaces of the attendance engine.

PURPOSE:
  Four logical tables feed and receive the pipeline: punch events
  (read-only input), summaries (daily + monthly), overtime reports, and
  the holiday calendar. Job runs are persisted alongside them so run ids
  are monotonic and run history survives restarts.

WRITE CONTRACTS:
  - PutSummaries: insert-if-absent by (user, type, target date), all rows
    in one transaction. Summaries are never updated.
  - UpsertReports: insert or update in place by (user, month), one
    transaction. Reports are the only mutable rows.
  Store implementations wrap retryable failures (busy database, write
  conflicts) with attendance.ErrTransientStore.

IMPLEMENTATIONS:
  - store/sqlite: production store (database/sql + mattn/go-sqlite3)
  - store/memory: in-memory store for tests and dev
*/
package store

import (
	"context"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// PUNCH EVENTS - Read-mostly input
// =============================================================================

type PunchEventStore interface {
	attendance.PunchSource

	// AppendPunch records one punch event and returns its id.
	AppendPunch(ctx context.Context, ev attendance.PunchEvent) (int64, error)

	// ListPunchesAfter pages punch events by primary key: rows with
	// id > afterID, ordered by id, at most limit.
	ListPunchesAfter(ctx context.Context, afterID int64, limit int) ([]attendance.PunchEvent, error)

	// ListPunchesByUserOrder pages punch events ordered by (user,
	// timestamp, id) for the month-scoped stage.
	ListPunchesByUserOrder(ctx context.Context, offset, limit int) ([]attendance.PunchEvent, error)
}

// =============================================================================
// SUMMARIES
// =============================================================================

type SummaryStore interface {
	attendance.SummarySource

	// PutSummaries inserts a chunk of summaries atomically, silently
	// keeping existing rows for an already-present natural key. Returns
	// the number of rows actually inserted: below len(sums) when a key
	// already existed or repeats within the chunk.
	PutSummaries(ctx context.Context, sums []attendance.Summary) (int, error)

	// ListSummariesByType pages all summaries of one type ordered by
	// (user, target date).
	ListSummariesByType(ctx context.Context, typ attendance.SummaryType, offset, limit int) ([]attendance.Summary, error)
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportStore interface {
	attendance.ReportSource

	// UpsertReports inserts or updates a chunk of reports atomically,
	// matched by (user, month). Updates keep the stored created_at.
	UpsertReports(ctx context.Context, reports []attendance.OvertimeReport) error

	// ListReportsForMonth returns all reports for a month start.
	ListReportsForMonth(ctx context.Context, month time.Time) ([]attendance.OvertimeReport, error)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayStore interface {
	ListHolidays(ctx context.Context) ([]attendance.Holiday, error)
	AddHoliday(ctx context.Context, h attendance.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
}

// =============================================================================
// JOB RUNS
// =============================================================================

type JobRun struct {
	ID           int64
	JobName      string
	Status       string
	ItemsRead    int
	ItemsWritten int
	ItemsSkipped int
	Error        string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

type JobRunStore interface {
	// CreateJobRun opens a run record and returns its monotonically
	// increasing id.
	CreateJobRun(ctx context.Context, jobName string, startedAt time.Time) (int64, error)

	// CompleteJobRun fills in the terminal status and counts.
	CompleteJobRun(ctx context.Context, run JobRun) error

	// ListJobRuns returns the most recent runs, newest first.
	ListJobRuns(ctx context.Context, limit int) ([]JobRun, error)
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Store is everything the engine persists, implemented by both backends.
type Store interface {
	PunchEventStore
	SummaryStore
	ReportStore
	HolidayStore
	JobRunStore
}
