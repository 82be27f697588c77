/*
Package pipeline provides the chunk-oriented control plane of the engine.

PURPOSE:
  Drives reader -> processor -> writer stages in bounded batches. Each
  chunk's outputs are written in one transaction by the writer; per-item
  failures are tolerated up to a skip limit and transient write failures
  are retried up to a retry limit. The stages themselves know nothing
  about chunking, limits, or transactions.

KEY CONCEPTS IN THIS FILE (pipeline.go):
  - Reader/Processor/Writer: the three stage interfaces
  - Result: tagged produced/skipped/failed outcome of processing one item

DESIGN PRINCIPLES:
  1. Processors are pure: they read, compute, and return a Result; the
     only side effect of a chunk is the writer's single transaction
  2. "No output" is an explicit Skipped result, never a nil sentinel,
     and never counts as a failure
  3. The runner owns all bookkeeping (counts, states, limits); stages
     stay trivially testable

SEE ALSO:
  - runner.go: the chunk loop and its retry/skip semantics
*/
package pipeline

import "context"

// =============================================================================
// STAGE INTERFACES
// =============================================================================

// Reader delivers upstream rows in a stable order. Implementations keep
// their own cursor; successive calls must never re-deliver a row within a
// run. An empty slice signals exhaustion.
type Reader[I any] interface {
	ReadChunk(ctx context.Context, limit int) ([]I, error)
}

// Processor transforms one item. It must not write to any store; outputs
// are collected and written by the Writer in one transaction per chunk.
type Processor[I, O any] interface {
	Process(ctx context.Context, item I) Result[O]
}

// Writer persists a chunk's outputs atomically and reports how many rows it
// actually kept. Insert-if-absent writers may keep fewer rows than they were
// handed when a chunk carries natural-key duplicates; the run summary counts
// kept rows, not produced outputs. A returned error rolls the whole chunk
// back; the runner decides whether to retry.
type Writer[O any] interface {
	WriteChunk(ctx context.Context, outs []O) (int, error)
}

// =============================================================================
// RESULT - Tagged outcome of processing one item
// =============================================================================

// Result is Produced(output), Skipped, or Failed(err). Skipped means the
// item legitimately yields nothing (a filter, not a failure). Failed counts
// against the job's skip limit.
type Result[O any] struct {
	out    *O
	err    error
	filter bool
}

func Produced[O any](out O) Result[O] { return Result[O]{out: &out} }

func Skipped[O any]() Result[O] { return Result[O]{filter: true} }

func Failed[O any](err error) Result[O] { return Result[O]{err: err} }

// Output returns the produced value, if any.
func (r Result[O]) Output() (O, bool) {
	if r.out == nil {
		var zero O
		return zero, false
	}
	return *r.out, true
}

// Err returns the failure, or nil for Produced and Skipped results.
func (r Result[O]) Err() error { return r.err }

// IsSkipped reports a no-output, no-error result.
func (r Result[O]) IsSkipped() bool { return r.filter }
