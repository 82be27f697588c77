// Package memory provides the in-memory Store implementation used by tests
// and dev servers. Semantics mirror store/sqlite: summaries are
// insert-if-absent, reports upsert in place, job run ids are monotonic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/store"
)

type summaryKey struct {
	User   attendance.UserID
	Type   attendance.SummaryType
	Target string
}

type reportKey struct {
	User  attendance.UserID
	Month string
}

type Store struct {
	mu        sync.RWMutex
	punches   []attendance.PunchEvent
	punchSeq  int64
	summaries map[summaryKey]attendance.Summary
	reports   map[reportKey]attendance.OvertimeReport
	holidays  []attendance.Holiday
	runs      []store.JobRun
	runSeq    int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		summaries: make(map[summaryKey]attendance.Summary),
		reports:   make(map[reportKey]attendance.OvertimeReport),
	}
}

func dayKey(t time.Time) string   { return t.Format("2006-01-02") }
func monthKey(t time.Time) string { return t.Format("2006-01") }

// =============================================================================
// PUNCH EVENTS
// =============================================================================

func (m *Store) AppendPunch(_ context.Context, ev attendance.PunchEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.punchSeq++
	ev.ID = m.punchSeq
	m.punches = append(m.punches, ev)
	return ev.ID, nil
}

func (m *Store) ListPunchesAfter(_ context.Context, afterID int64, limit int) ([]attendance.PunchEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.PunchEvent
	for _, p := range m.punches {
		if p.ID > afterID {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Store) ListPunchesByUserOrder(_ context.Context, offset, limit int) ([]attendance.PunchEvent, error) {
	m.mu.RLock()
	sorted := make([]attendance.PunchEvent, len(m.punches))
	copy(sorted, m.punches)
	m.mu.RUnlock()

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].UserID != sorted[j].UserID {
			return sorted[i].UserID < sorted[j].UserID
		}
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	if offset >= len(sorted) {
		return nil, nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return append([]attendance.PunchEvent(nil), sorted[offset:end]...), nil
}

func (m *Store) ListUserPunchesBetween(_ context.Context, user attendance.UserID, from, to time.Time) ([]attendance.PunchEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.PunchEvent
	for _, p := range m.punches {
		if p.UserID != user || p.Timestamp.Before(from) || !p.Timestamp.Before(to) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

func (m *Store) FindSummary(_ context.Context, user attendance.UserID, typ attendance.SummaryType, target time.Time) (*attendance.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := summaryKey{User: user, Type: typ, Target: dayKey(target)}
	if s, ok := m.summaries[k]; ok {
		out := s
		return &out, nil
	}
	return nil, nil
}

func (m *Store) ListUserSummaries(_ context.Context, user attendance.UserID, typ attendance.SummaryType, from, to time.Time) ([]attendance.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Summary
	for _, s := range m.summaries {
		if s.UserID != user || s.Type != typ {
			continue
		}
		if s.TargetDate.Before(from) || !s.TargetDate.Before(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate) })
	return out, nil
}

func (m *Store) PutSummaries(_ context.Context, sums []attendance.Summary) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, s := range sums {
		k := summaryKey{User: s.UserID, Type: s.Type, Target: dayKey(s.TargetDate)}
		if _, exists := m.summaries[k]; exists {
			continue
		}
		m.summaries[k] = s
		inserted++
	}
	return inserted, nil
}

func (m *Store) ListSummariesByType(_ context.Context, typ attendance.SummaryType, offset, limit int) ([]attendance.Summary, error) {
	m.mu.RLock()
	var all []attendance.Summary
	for _, s := range m.summaries {
		if s.Type == typ {
			all = append(all, s)
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].UserID != all[j].UserID {
			return all[i].UserID < all[j].UserID
		}
		return all[i].TargetDate.Before(all[j].TargetDate)
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]attendance.Summary(nil), all[offset:end]...), nil
}

// =============================================================================
// REPORTS
// =============================================================================

func (m *Store) FindReport(_ context.Context, user attendance.UserID, month time.Time) (*attendance.OvertimeReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := reportKey{User: user, Month: monthKey(month)}
	if r, ok := m.reports[k]; ok {
		out := r
		return &out, nil
	}
	return nil, nil
}

func (m *Store) UpsertReports(_ context.Context, reports []attendance.OvertimeReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range reports {
		k := reportKey{User: r.UserID, Month: monthKey(r.Month)}
		if existing, ok := m.reports[k]; ok {
			// Update in place: keep identity and creation time.
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt
		}
		m.reports[k] = r
	}
	return nil
}

func (m *Store) ListReportsForMonth(_ context.Context, month time.Time) ([]attendance.OvertimeReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := monthKey(month)
	var out []attendance.OvertimeReport
	for k, r := range m.reports {
		if k.Month == key {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Store) ListHolidays(_ context.Context) ([]attendance.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]attendance.Holiday(nil), m.holidays...), nil
}

func (m *Store) AddHoliday(_ context.Context, h attendance.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, h)
	return nil
}

func (m *Store) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, h := range m.holidays {
		if h.ID == id {
			m.holidays = append(m.holidays[:i], m.holidays[i+1:]...)
			return nil
		}
	}
	return nil
}

// =============================================================================
// JOB RUNS
// =============================================================================

func (m *Store) CreateJobRun(_ context.Context, jobName string, startedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runSeq++
	m.runs = append(m.runs, store.JobRun{
		ID:        m.runSeq,
		JobName:   jobName,
		Status:    "running",
		StartedAt: startedAt,
	})
	return m.runSeq, nil
}

func (m *Store) CompleteJobRun(_ context.Context, run store.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	return nil
}

func (m *Store) ListJobRuns(_ context.Context, limit int) ([]store.JobRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]store.JobRun(nil), m.runs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
