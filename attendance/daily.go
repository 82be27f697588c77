/*
daily.go - DailyAggregator

PURPOSE:
  Turns one day's punch events for a user into a DailySummary row. The
  pipeline delivers punch events one at a time in id order; only "in"
  events trigger production, and the aggregator re-derives the full day
  from the punch store.

PAIRING RULE:
  The first "in" of the calendar day is paired with the first "out" after
  it, which may fall on the next day (cross-midnight shifts). The search
  for the "out" stops at the user's next "in": a day whose own "out" is
  missing never borrows one from a later shift. A lone "in" or a lone
  "out" produces nothing. An "out" timestamped at or before its "in" is a
  validation failure, not a silent skip.

IDEMPOTENCY:
  A (user, date) that already has a daily summary is skipped, so repeated
  "in" punches on one day, or a re-run over the same events, cannot
  duplicate rows. The store's unique key on (user, type, target date)
  backs this up.
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/attendance-engine/pipeline"
)

// DailyAggregator computes daily summaries. Construct with the stores and
// calendar it reads from; it never writes.
type DailyAggregator struct {
	Punches   PunchSource
	Summaries SummarySource
	Calendar  HolidayCalendar

	// StandardDailyHours is the threshold above which worked time counts
	// as overtime (settings default 8.00).
	StandardDailyHours Hours

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (a *DailyAggregator) Process(ctx context.Context, ev PunchEvent) pipeline.Result[Summary] {
	if ev.Type != PunchIn {
		return pipeline.Skipped[Summary]()
	}

	day := WorkDate(ev.Timestamp)

	existing, err := a.Summaries.FindSummary(ctx, ev.UserID, SummaryDaily, day)
	if err != nil {
		return pipeline.Failed[Summary](fmt.Errorf("lookup daily summary: %w", err))
	}
	if existing != nil {
		return pipeline.Skipped[Summary]()
	}

	// Load the whole day plus the next one so an "out" after midnight is
	// still visible.
	punches, err := a.Punches.ListUserPunchesBetween(ctx, ev.UserID, day, day.AddDate(0, 0, 2))
	if err != nil {
		return pipeline.Failed[Summary](fmt.Errorf("load punches: %w", err))
	}

	in, out, err := pairPunches(punches, day)
	if err != nil {
		return pipeline.Failed[Summary](err)
	}
	if in == nil || out == nil {
		// Unmatched day: nothing to summarize yet.
		return pipeline.Skipped[Summary]()
	}

	total := HoursFromDuration(out.Timestamp.Sub(in.Timestamp)).Round2()
	overtime := total.Sub(a.StandardDailyHours).MaxZero().Round2()
	lateNight := LateNightHours(in.Timestamp, out.Timestamp).Round2()

	holiday := ZeroHours()
	if IsWeekend(day) || (a.Calendar != nil && a.Calendar.IsHoliday(day)) {
		holiday = total
	}

	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}

	return pipeline.Produced(Summary{
		ID:         uuid.NewString(),
		UserID:     ev.UserID,
		Type:       SummaryDaily,
		TargetDate: day,
		Total:      total,
		Overtime:   overtime,
		LateNight:  lateNight,
		Holiday:    holiday,
		CreatedAt:  now,
	})
}

// pairPunches finds the day's first "in" and the first "out" after it,
// giving up at the user's next "in" punch. Returns (nil, nil, nil) when the
// day has no completable pair, and an error only for pairings that are
// actually malformed.
func pairPunches(punches []PunchEvent, day time.Time) (*PunchEvent, *PunchEvent, error) {
	nextDay := day.AddDate(0, 0, 1)

	var in *PunchEvent
	inIdx := -1
	for i := range punches {
		p := punches[i]
		if p.Type == PunchIn && !p.Timestamp.Before(day) && p.Timestamp.Before(nextDay) {
			in = &punches[i]
			inIdx = i
			break
		}
	}
	if in == nil {
		return nil, nil, nil
	}

	// Punches arrive in timestamp order, so scanning forward from the "in"
	// visits candidates in clock order.
	for i := inIdx + 1; i < len(punches); i++ {
		p := punches[i]
		switch p.Type {
		case PunchIn:
			// The span ends at the next clock-in. A day whose "out" is
			// missing stays unmatched instead of borrowing the closing
			// punch of a later shift.
			if p.Timestamp.After(in.Timestamp) {
				return nil, nil, nil
			}
		case PunchOut:
			if !p.Timestamp.After(in.Timestamp) {
				return nil, nil, &InvalidPunchPairError{
					UserID: in.UserID,
					Date:   day,
					Reason: "out punch not after in punch",
				}
			}
			return in, &punches[i], nil
		}
	}
	return nil, nil, nil
}
