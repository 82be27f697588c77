/*
Package sqlite provides the SQLite-backed implementation of store.Store.

PURPOSE:
  Persists the engine's four logical tables (punch events, summaries,
  overtime reports, holidays) plus job runs. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

WRITE SEMANTICS:
  - Summaries: INSERT ... ON CONFLICT DO NOTHING on the natural key
    (user, type, target date); summaries are never updated
  - Reports: INSERT ... ON CONFLICT DO UPDATE on (user, month), keeping
    the stored created_at
  - Each PutSummaries / UpsertReports call is one transaction; the chunk
    writer gets per-chunk atomicity for free

TRANSIENT FAILURES:
  Busy/locked errors are wrapped with attendance.ErrTransientStore so the
  chunk runner can retry them.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block and crash recovery improves.

USAGE:
  st, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/store"
)

const (
	timeFormat = time.RFC3339
	dateFormat = "2006-01-02"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time keeps chunk transactions serialized.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Punch events (read-only input to aggregation)
	CREATE TABLE IF NOT EXISTS punch_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		punch_type TEXT NOT NULL,
		punched_at TEXT NOT NULL,
		latitude REAL DEFAULT 0,
		longitude REAL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_punch_events_user_time
		ON punch_events(user_id, punched_at);

	-- Daily and monthly summaries (written once per natural key)
	CREATE TABLE IF NOT EXISTS attendance_summaries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		summary_type TEXT NOT NULL,
		target_date TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		late_night_hours TEXT NOT NULL,
		holiday_hours TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Idempotency backstop: one summary per (user, type, date)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_summaries_natural_key
		ON attendance_summaries(user_id, summary_type, target_date);
	CREATE INDEX IF NOT EXISTS idx_summaries_type_user
		ON attendance_summaries(summary_type, user_id, target_date);

	-- Overtime reports (mutable, upsert by user+month)
	CREATE TABLE IF NOT EXISTS overtime_reports (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		late_night_hours TEXT NOT NULL,
		holiday_hours TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, month)
	);

	CREATE INDEX IF NOT EXISTS idx_reports_month
		ON overtime_reports(month);

	-- Holidays (recurring and one-off)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- Job runs (monotonic run ids, run history)
	CREATE TABLE IF NOT EXISTS job_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_name TEXT NOT NULL,
		status TEXT NOT NULL,
		items_read INTEGER DEFAULT 0,
		items_written INTEGER DEFAULT 0,
		items_skipped INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_job_runs_job
		ON job_runs(job_name, id DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PUNCH EVENTS (store.PunchEventStore)
// =============================================================================

func (s *Store) AppendPunch(ctx context.Context, ev attendance.PunchEvent) (int64, error) {
	// Timestamps are normalized to UTC so the lexical string comparisons in
	// the range queries follow the instant regardless of intake offset.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO punch_events (user_id, punch_type, punched_at, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)`,
		ev.UserID, ev.Type, ev.Timestamp.UTC().Format(timeFormat), ev.Latitude, ev.Longitude,
	)
	if err != nil {
		return 0, wrapStoreErr("append punch", err)
	}
	return res.LastInsertId()
}

func (s *Store) ListPunchesAfter(ctx context.Context, afterID int64, limit int) ([]attendance.PunchEvent, error) {
	return s.queryPunches(ctx, `
		SELECT id, user_id, punch_type, punched_at, latitude, longitude
		FROM punch_events
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?`, afterID, limit)
}

func (s *Store) ListPunchesByUserOrder(ctx context.Context, offset, limit int) ([]attendance.PunchEvent, error) {
	return s.queryPunches(ctx, `
		SELECT id, user_id, punch_type, punched_at, latitude, longitude
		FROM punch_events
		ORDER BY user_id ASC, punched_at ASC, id ASC
		LIMIT ? OFFSET ?`, limit, offset)
}

func (s *Store) ListUserPunchesBetween(ctx context.Context, user attendance.UserID, from, to time.Time) ([]attendance.PunchEvent, error) {
	return s.queryPunches(ctx, `
		SELECT id, user_id, punch_type, punched_at, latitude, longitude
		FROM punch_events
		WHERE user_id = ? AND punched_at >= ? AND punched_at < ?
		ORDER BY punched_at ASC, id ASC`,
		user, from.UTC().Format(timeFormat), to.UTC().Format(timeFormat))
}

func (s *Store) queryPunches(ctx context.Context, query string, args ...any) ([]attendance.PunchEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr("query punches", err)
	}
	defer rows.Close()

	var out []attendance.PunchEvent
	for rows.Next() {
		var (
			ev attendance.PunchEvent
			ts string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Type, &ts, &ev.Latitude, &ev.Longitude); err != nil {
			return nil, fmt.Errorf("scan punch: %w", err)
		}
		t, err := time.Parse(timeFormat, ts)
		if err != nil {
			return nil, fmt.Errorf("parse punch timestamp: %w", err)
		}
		ev.Timestamp = t
		out = append(out, ev)
	}
	return out, rows.Err()
}

// =============================================================================
// SUMMARIES (store.SummaryStore)
// =============================================================================

func (s *Store) FindSummary(ctx context.Context, user attendance.UserID, typ attendance.SummaryType, target time.Time) (*attendance.Summary, error) {
	sums, err := s.querySummaries(ctx, `
		SELECT id, user_id, summary_type, target_date, total_hours,
		       overtime_hours, late_night_hours, holiday_hours, created_at
		FROM attendance_summaries
		WHERE user_id = ? AND summary_type = ? AND target_date = ?`,
		user, typ, target.Format(dateFormat))
	if err != nil || len(sums) == 0 {
		return nil, err
	}
	return &sums[0], nil
}

func (s *Store) ListUserSummaries(ctx context.Context, user attendance.UserID, typ attendance.SummaryType, from, to time.Time) ([]attendance.Summary, error) {
	return s.querySummaries(ctx, `
		SELECT id, user_id, summary_type, target_date, total_hours,
		       overtime_hours, late_night_hours, holiday_hours, created_at
		FROM attendance_summaries
		WHERE user_id = ? AND summary_type = ? AND target_date >= ? AND target_date < ?
		ORDER BY target_date ASC`,
		user, typ, from.Format(dateFormat), to.Format(dateFormat))
}

func (s *Store) ListSummariesByType(ctx context.Context, typ attendance.SummaryType, offset, limit int) ([]attendance.Summary, error) {
	return s.querySummaries(ctx, `
		SELECT id, user_id, summary_type, target_date, total_hours,
		       overtime_hours, late_night_hours, holiday_hours, created_at
		FROM attendance_summaries
		WHERE summary_type = ?
		ORDER BY user_id ASC, target_date ASC
		LIMIT ? OFFSET ?`,
		typ, limit, offset)
}

func (s *Store) PutSummaries(ctx context.Context, sums []attendance.Summary) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapStoreErr("begin summaries tx", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, sum := range sums {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_summaries
			(id, user_id, summary_type, target_date, total_hours,
			 overtime_hours, late_night_hours, holiday_hours, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, summary_type, target_date) DO NOTHING`,
			sum.ID, sum.UserID, sum.Type, sum.TargetDate.Format(dateFormat),
			sum.Total.String(), sum.Overtime.String(), sum.LateNight.String(),
			sum.Holiday.String(), sum.CreatedAt.UTC().Format(timeFormat),
		)
		if err != nil {
			return 0, wrapStoreErr("insert summary", err)
		}
		// A conflicting key affects zero rows, so this counts real inserts.
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapStoreErr("commit summaries", err)
	}
	return inserted, nil
}

func (s *Store) querySummaries(ctx context.Context, query string, args ...any) ([]attendance.Summary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr("query summaries", err)
	}
	defer rows.Close()

	var out []attendance.Summary
	for rows.Next() {
		var (
			sum                                 attendance.Summary
			target, total, ot, ln, hol, created string
		)
		if err := rows.Scan(&sum.ID, &sum.UserID, &sum.Type, &target,
			&total, &ot, &ln, &hol, &created); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.TargetDate, err = time.Parse(dateFormat, target)
		if err != nil {
			return nil, fmt.Errorf("parse target date: %w", err)
		}
		sum.Total = attendance.ParseHours(total)
		sum.Overtime = attendance.ParseHours(ot)
		sum.LateNight = attendance.ParseHours(ln)
		sum.Holiday = attendance.ParseHours(hol)
		if t, err := time.Parse(timeFormat, created); err == nil {
			sum.CreatedAt = t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// =============================================================================
// REPORTS (store.ReportStore)
// =============================================================================

func (s *Store) FindReport(ctx context.Context, user attendance.UserID, month time.Time) (*attendance.OvertimeReport, error) {
	reports, err := s.queryReports(ctx, `
		SELECT id, user_id, month, overtime_hours, late_night_hours,
		       holiday_hours, status, created_at, updated_at
		FROM overtime_reports
		WHERE user_id = ? AND month = ?`,
		user, month.Format(dateFormat))
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return &reports[0], nil
}

func (s *Store) ListReportsForMonth(ctx context.Context, month time.Time) ([]attendance.OvertimeReport, error) {
	return s.queryReports(ctx, `
		SELECT id, user_id, month, overtime_hours, late_night_hours,
		       holiday_hours, status, created_at, updated_at
		FROM overtime_reports
		WHERE month = ?
		ORDER BY user_id ASC`,
		month.Format(dateFormat))
}

func (s *Store) UpsertReports(ctx context.Context, reports []attendance.OvertimeReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreErr("begin reports tx", err)
	}
	defer tx.Rollback()

	for _, r := range reports {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO overtime_reports
			(id, user_id, month, overtime_hours, late_night_hours,
			 holiday_hours, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, month) DO UPDATE SET
				overtime_hours = excluded.overtime_hours,
				late_night_hours = excluded.late_night_hours,
				holiday_hours = excluded.holiday_hours,
				status = excluded.status,
				updated_at = excluded.updated_at`,
			r.ID, r.UserID, r.Month.Format(dateFormat),
			r.Overtime.String(), r.LateNight.String(), r.Holiday.String(),
			r.Status, r.CreatedAt.UTC().Format(timeFormat), r.UpdatedAt.UTC().Format(timeFormat),
		)
		if err != nil {
			return wrapStoreErr("upsert report", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapStoreErr("commit reports", err)
	}
	return nil
}

func (s *Store) queryReports(ctx context.Context, query string, args ...any) ([]attendance.OvertimeReport, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr("query reports", err)
	}
	defer rows.Close()

	var out []attendance.OvertimeReport
	for rows.Next() {
		var (
			r                            attendance.OvertimeReport
			month, ot, ln, hol, crt, upd string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &month, &ot, &ln, &hol,
			&r.Status, &crt, &upd); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Month, err = time.Parse(dateFormat, month)
		if err != nil {
			return nil, fmt.Errorf("parse report month: %w", err)
		}
		r.Overtime = attendance.ParseHours(ot)
		r.LateNight = attendance.ParseHours(ln)
		r.Holiday = attendance.ParseHours(hol)
		if t, err := time.Parse(timeFormat, crt); err == nil {
			r.CreatedAt = t
		}
		if t, err := time.Parse(timeFormat, upd); err == nil {
			r.UpdatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAYS (store.HolidayStore)
// =============================================================================

func (s *Store) ListHolidays(ctx context.Context) ([]attendance.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, name, recurring, created_at
		FROM holidays
		ORDER BY date ASC`)
	if err != nil {
		return nil, wrapStoreErr("query holidays", err)
	}
	defer rows.Close()

	var out []attendance.Holiday
	for rows.Next() {
		var (
			h         attendance.Holiday
			date, crt string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring, &crt); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		var err error
		h.Date, err = time.Parse(dateFormat, date)
		if err != nil {
			return nil, fmt.Errorf("parse holiday date: %w", err)
		}
		if t, err := time.Parse(timeFormat, crt); err == nil {
			h.CreatedAt = t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) AddHoliday(ctx context.Context, h attendance.Holiday) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.Date.Format(dateFormat), h.Name, h.Recurring,
		h.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return wrapStoreErr("insert holiday", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return wrapStoreErr("delete holiday", err)
	}
	return nil
}

// =============================================================================
// JOB RUNS (store.JobRunStore)
// =============================================================================

func (s *Store) CreateJobRun(ctx context.Context, jobName string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs (job_name, status, started_at)
		VALUES (?, 'running', ?)`,
		jobName, startedAt.UTC().Format(timeFormat))
	if err != nil {
		return 0, wrapStoreErr("create job run", err)
	}
	return res.LastInsertId()
}

func (s *Store) CompleteJobRun(ctx context.Context, run store.JobRun) error {
	var completed any
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC().Format(timeFormat)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_runs
		SET status = ?, items_read = ?, items_written = ?, items_skipped = ?,
		    error = ?, completed_at = ?
		WHERE id = ?`,
		run.Status, run.ItemsRead, run.ItemsWritten, run.ItemsSkipped,
		nullString(run.Error), completed, run.ID)
	if err != nil {
		return wrapStoreErr("complete job run", err)
	}
	return nil
}

func (s *Store) ListJobRuns(ctx context.Context, limit int) ([]store.JobRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_name, status, items_read, items_written, items_skipped,
		       COALESCE(error, ''), started_at, completed_at
		FROM job_runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, wrapStoreErr("query job runs", err)
	}
	defer rows.Close()

	var out []store.JobRun
	for rows.Next() {
		var (
			run       store.JobRun
			started   string
			completed sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.JobName, &run.Status, &run.ItemsRead,
			&run.ItemsWritten, &run.ItemsSkipped, &run.Error, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		if t, err := time.Parse(timeFormat, started); err == nil {
			run.StartedAt = t
		}
		if completed.Valid {
			if t, err := time.Parse(timeFormat, completed.String); err == nil {
				run.CompletedAt = &t
			}
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// wrapStoreErr tags retryable SQLite failures with ErrTransientStore so the
// chunk runner's retry policy can recognize them.
func wrapStoreErr(op string, err error) error {
	if isBusyError(err) {
		return fmt.Errorf("%s: %w: %v", op, attendance.ErrTransientStore, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
