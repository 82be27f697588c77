/*
launcher.go - Named jobs and the bounded launcher

PURPOSE:
  Exposes the three stages as named jobs with persisted, monotonically
  increasing run ids. The launcher bounds concurrent runs with a worker
  semaphore and serializes runs of the same job, so two runs never
  interleave writes against the same summary tables.

RUN LIFECYCLE:
  CreateJobRun (id issued) -> chunk loop under the configured timeout ->
  CompleteJobRun with status COMPLETED or FAILED plus read/written/
  skipped counts. A COMPLETED run with skips is reported as such and the
  error log holds the per-item details.
*/
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/joblog"
	"github.com/warp/attendance-engine/pipeline"
	"github.com/warp/attendance-engine/settings"
	"github.com/warp/attendance-engine/store"
)

// Job names, as launched by the scheduler, CLI, or HTTP surface.
const (
	JobDailySummary   = "daily-summary"
	JobMonthlySummary = "monthly-summary"
	JobOvertimeReport = "overtime-report"
)

// Names lists all launchable jobs in their natural execution order.
func Names() []string {
	return []string{JobDailySummary, JobMonthlySummary, JobOvertimeReport}
}

// Launcher runs named jobs against one store with one settings snapshot.
type Launcher struct {
	Store    store.Store
	Settings settings.Settings
	Recorder joblog.Recorder
	Logger   *logrus.Logger

	sem      chan struct{}
	jobLocks sync.Map // job name -> *sync.Mutex
}

func NewLauncher(st store.Store, cfg settings.Settings, rec joblog.Recorder, logger *logrus.Logger) (*Launcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Launcher{
		Store:    st,
		Settings: cfg,
		Recorder: rec,
		Logger:   logger,
		sem:      make(chan struct{}, cfg.Workers),
	}, nil
}

// Run executes one named job to completion and returns its persisted run
// record. Blocks while the worker pool is saturated.
func (l *Launcher) Run(ctx context.Context, jobName string) (store.JobRun, error) {
	if !validJob(jobName) {
		return store.JobRun{}, fmt.Errorf("unknown job %q", jobName)
	}

	select {
	case l.sem <- struct{}{}:
		defer func() { <-l.sem }()
	case <-ctx.Done():
		return store.JobRun{}, ctx.Err()
	}

	// Same-named runs are serialized; different jobs may run concurrently.
	mu := l.lockFor(jobName)
	mu.Lock()
	defer mu.Unlock()

	started := time.Now()
	runID, err := l.Store.CreateJobRun(ctx, jobName, started)
	if err != nil {
		return store.JobRun{}, fmt.Errorf("create run record: %w", err)
	}

	log := l.Logger.WithFields(logrus.Fields{"job": jobName, "run_id": runID})
	log.Info("job started")

	runCtx, cancel := context.WithTimeout(ctx, l.Settings.Timeout())
	defer cancel()

	summary, runErr := l.dispatch(runCtx, jobName, log)

	completed := time.Now()
	run := store.JobRun{
		ID:           runID,
		JobName:      jobName,
		Status:       string(summary.Status),
		ItemsRead:    summary.ItemsRead,
		ItemsWritten: summary.ItemsWritten,
		ItemsSkipped: summary.ItemsSkipped,
		StartedAt:    started,
		CompletedAt:  &completed,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// Persist the outcome even when the run context timed out.
	if err := l.Store.CompleteJobRun(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).Error("failed to persist run outcome")
	}

	log.WithFields(logrus.Fields{
		"status":  run.Status,
		"read":    run.ItemsRead,
		"written": run.ItemsWritten,
		"skipped": run.ItemsSkipped,
	}).Info("job finished")

	return run, runErr
}

func (l *Launcher) lockFor(jobName string) *sync.Mutex {
	mu, _ := l.jobLocks.LoadOrStore(jobName, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func validJob(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// dispatch builds the stage triple for one job and runs the chunk loop.
func (l *Launcher) dispatch(ctx context.Context, jobName string, log *logrus.Entry) (pipeline.Summary, error) {
	cfg := pipeline.Config{
		JobName:    jobName,
		ChunkSize:  l.Settings.ChunkSize,
		SkipLimit:  l.Settings.SkipLimit,
		RetryLimit: l.Settings.RetryLimit,
		Retryable:  attendance.IsTransient,
	}

	switch jobName {
	case JobDailySummary:
		calendar, err := loadCalendar(ctx, l.Store)
		if err != nil {
			return pipeline.Summary{Status: pipeline.StatusFailed}, fmt.Errorf("load holiday calendar: %w", err)
		}
		cfg.StepName = "daily-aggregation"
		runner := &pipeline.Runner[attendance.PunchEvent, attendance.Summary]{
			Reader: &punchIDReader{store: l.Store},
			Processor: &attendance.DailyAggregator{
				Punches:            l.Store,
				Summaries:          l.Store,
				Calendar:           calendar,
				StandardDailyHours: l.Settings.StandardDay(),
			},
			Writer:   &summaryWriter{store: l.Store},
			Config:   cfg,
			Failures: l.Recorder,
			Logger:   log,
		}
		return runner.Run(ctx)

	case JobMonthlySummary:
		cfg.StepName = "monthly-rollup"
		runner := &pipeline.Runner[attendance.PunchEvent, attendance.Summary]{
			Reader:    &punchUserReader{store: l.Store},
			Processor: &attendance.MonthlyAggregator{Summaries: l.Store},
			Writer:    &summaryWriter{store: l.Store},
			Config:    cfg,
			Failures:  l.Recorder,
			Logger:    log,
		}
		return runner.Run(ctx)

	case JobOvertimeReport:
		cfg.StepName = "risk-classification"
		runner := &pipeline.Runner[attendance.Summary, attendance.OvertimeReport]{
			Reader: &monthlySummaryReader{store: l.Store},
			Processor: &attendance.OvertimeRiskClassifier{
				Reports:    l.Store,
				Thresholds: l.Settings.Thresholds(),
			},
			Writer:   &reportWriter{store: l.Store},
			Config:   cfg,
			Failures: l.Recorder,
			Logger:   log,
		}
		return runner.Run(ctx)
	}

	return pipeline.Summary{Status: pipeline.StatusFailed}, fmt.Errorf("unknown job %q", jobName)
}
