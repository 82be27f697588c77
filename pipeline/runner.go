/*
runner.go - Generic chunk loop

STATE MACHINE (per chunk):
  Idle -> Reading -> Processing -> Writing -> Committed
looping until the reader is exhausted, then Completed; any unrecovered
error ends the run as Failed.

SKIP POLICY:
  A Failed item result is recorded to the failure sink and tolerated;
  once more than SkipLimit items have failed, the run aborts with
  ErrSkipLimitExceeded. Skipped (filtered) items never count.

RETRY POLICY:
  A write failure classified retryable by the Retryable hook is retried
  up to RetryLimit times for the same chunk. Exhaustion, or a
  non-retryable failure, fails the run. Chunks already committed stay
  committed; there is no global rollback.

CANCELLATION:
  Cooperative, between chunks only. A cancelled run reports Failed with
  the counts accumulated so far.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// STATES AND STATUS
// =============================================================================

type State string

const (
	StateIdle       State = "idle"
	StateReading    State = "reading"
	StateProcessing State = "processing"
	StateWriting    State = "writing"
	StateCommitted  State = "committed"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// ErrSkipLimitExceeded aborts a run once too many items have failed.
var ErrSkipLimitExceeded = errors.New("skip limit exceeded")

// Summary is the caller-visible outcome of a run. ItemsWritten counts rows
// the writer actually persisted, which can be below the produced outputs when
// a chunk carried natural-key duplicates. A COMPLETED run with a non-zero
// ItemsSkipped needs review, it is not a clean success.
type Summary struct {
	Status       Status
	ItemsRead    int
	ItemsWritten int
	ItemsSkipped int
}

// =============================================================================
// FAILURE SINK
// =============================================================================

// FailureSink receives every tolerated per-item failure and the terminal
// job failure, for durable diagnosis. joblog.FileRecorder implements it.
type FailureSink interface {
	RecordItemFailure(ctx context.Context, job, step string, item any, err error)
	RecordJobFailure(ctx context.Context, job string, err error)
}

// NopSink discards failures; useful in tests that only assert counts.
type NopSink struct{}

func (NopSink) RecordItemFailure(context.Context, string, string, any, error) {}
func (NopSink) RecordJobFailure(context.Context, string, error)               {}

// =============================================================================
// RUNNER
// =============================================================================

// Config carries the per-run tuning taken from settings. Retryable
// classifies write errors; nil means nothing is retried.
type Config struct {
	JobName    string
	StepName   string
	ChunkSize  int
	SkipLimit  int
	RetryLimit int
	Retryable  func(error) bool
}

// Runner drives one reader/processor/writer stage to completion. Chunks are
// processed and committed strictly sequentially; chunk N's writes are
// durable before chunk N+1 is read.
type Runner[I, O any] struct {
	Reader    Reader[I]
	Processor Processor[I, O]
	Writer    Writer[O]
	Config    Config
	Failures  FailureSink
	Logger    *logrus.Entry

	state State
}

// State returns the runner's current state. Runs are single-goroutine; this
// exists for logging and tests, not for concurrent observation.
func (r *Runner[I, O]) State() State { return r.state }

// Run executes the chunk loop until the reader is exhausted or the run
// fails. The returned Summary is valid in both cases.
func (r *Runner[I, O]) Run(ctx context.Context) (Summary, error) {
	r.state = StateIdle
	sum := Summary{Status: StatusFailed}
	failures := r.Failures
	if failures == nil {
		failures = NopSink{}
	}

	for {
		// Cancellation point: between chunks only, never mid-chunk.
		select {
		case <-ctx.Done():
			r.state = StateFailed
			failures.RecordJobFailure(ctx, r.Config.JobName, ctx.Err())
			return sum, ctx.Err()
		default:
		}

		r.state = StateReading
		items, err := r.Reader.ReadChunk(ctx, r.Config.ChunkSize)
		if err != nil {
			r.state = StateFailed
			err = fmt.Errorf("read chunk: %w", err)
			failures.RecordJobFailure(ctx, r.Config.JobName, err)
			return sum, err
		}
		if len(items) == 0 {
			r.state = StateCompleted
			sum.Status = StatusCompleted
			return sum, nil
		}
		sum.ItemsRead += len(items)

		r.state = StateProcessing
		outs := make([]O, 0, len(items))
		for _, item := range items {
			res := r.Processor.Process(ctx, item)
			if out, ok := res.Output(); ok {
				outs = append(outs, out)
				continue
			}
			if err := res.Err(); err != nil {
				sum.ItemsSkipped++
				failures.RecordItemFailure(ctx, r.Config.JobName, r.Config.StepName, item, err)
				if sum.ItemsSkipped > r.Config.SkipLimit {
					r.state = StateFailed
					failures.RecordJobFailure(ctx, r.Config.JobName, ErrSkipLimitExceeded)
					return sum, fmt.Errorf("%w: %d items failed", ErrSkipLimitExceeded, sum.ItemsSkipped)
				}
			}
			// Skipped results produce nothing and count nowhere.
		}

		if len(outs) > 0 {
			r.state = StateWriting
			n, err := r.writeWithRetry(ctx, outs)
			if err != nil {
				r.state = StateFailed
				failures.RecordJobFailure(ctx, r.Config.JobName, err)
				return sum, err
			}
			sum.ItemsWritten += n
		}
		r.state = StateCommitted
	}
}

// writeWithRetry commits one chunk, retrying transient failures up to the
// retry limit. Each attempt is a fresh transaction inside the writer.
// Returns the number of rows the successful attempt persisted.
func (r *Runner[I, O]) writeWithRetry(ctx context.Context, outs []O) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= r.Config.RetryLimit; attempt++ {
		n, err := r.Writer.WriteChunk(ctx, outs)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if r.Config.Retryable == nil || !r.Config.Retryable(lastErr) {
			return 0, fmt.Errorf("write chunk: %w", lastErr)
		}
		if r.Logger != nil {
			r.Logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"limit":   r.Config.RetryLimit,
			}).WithError(lastErr).Warn("chunk write failed, retrying")
		}
	}
	return 0, fmt.Errorf("write chunk: retries exhausted: %w", lastErr)
}
