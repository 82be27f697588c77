/*
monthly.go - MonthlyAggregator

PURPOSE:
  Rolls one user's daily summaries into a single monthly summary. The
  trigger convention mirrors DailyAggregator: the pipeline delivers punch
  events, and only "in" events are used, purely to derive the (user,
  month) key.

IDEMPOTENCY:
  An existing monthly summary for (user, month) short-circuits the whole
  computation, so the stage can run any number of times over the same
  data and produce at most one row per key. Daily rows must already be
  durably committed (by the daily job) before this stage reads them.
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/attendance-engine/pipeline"
)

// MonthlyAggregator rolls daily summaries up to months.
type MonthlyAggregator struct {
	Summaries SummarySource

	Now func() time.Time
}

func (a *MonthlyAggregator) Process(ctx context.Context, ev PunchEvent) pipeline.Result[Summary] {
	if ev.Type != PunchIn {
		return pipeline.Skipped[Summary]()
	}

	month := MonthStart(ev.Timestamp)

	existing, err := a.Summaries.FindSummary(ctx, ev.UserID, SummaryMonthly, month)
	if err != nil {
		return pipeline.Failed[Summary](fmt.Errorf("lookup monthly summary: %w", err))
	}
	if existing != nil {
		return pipeline.Skipped[Summary]()
	}

	dailies, err := a.Summaries.ListUserSummaries(ctx, ev.UserID, SummaryDaily, month, NextMonth(month))
	if err != nil {
		return pipeline.Failed[Summary](fmt.Errorf("load daily summaries: %w", err))
	}
	if len(dailies) == 0 {
		// Nothing rolled up yet for this month.
		return pipeline.Skipped[Summary]()
	}

	var total, overtime, lateNight, holiday Hours
	for _, d := range dailies {
		total = total.Add(d.Total)
		overtime = overtime.Add(d.Overtime)
		lateNight = lateNight.Add(d.LateNight)
		holiday = holiday.Add(d.Holiday)
	}

	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}

	return pipeline.Produced(Summary{
		ID:         uuid.NewString(),
		UserID:     ev.UserID,
		Type:       SummaryMonthly,
		TargetDate: month,
		Total:      total.Round2(),
		Overtime:   overtime.Round2(),
		LateNight:  lateNight.Round2(),
		Holiday:    holiday.Round2(),
		CreatedAt:  now,
	})
}
