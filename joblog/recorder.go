/*
Package joblog is the durable side-channel for pipeline failures.

PURPOSE:
  Every tolerated per-item failure and every terminal job failure is
  appended to a human-readable log for later diagnosis, independent of
  the relational store. The file recorder writes one JSON line per
  record via logrus; per-step counts are kept in memory so a run can be
  summarized without re-reading the file.

RECORD SHAPE:
  {"job":"daily-summary","step":"daily-aggregation","kind":"validation",
   "item":"...","record_id":"...","time":"...","msg":"..."}

IMPLEMENTATIONS:
  - FileRecorder: append-only JSON log file (production)
  - MemoryRecorder: slice-backed, for tests
Both satisfy pipeline.FailureSink.
*/
package joblog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/pipeline"
)

// =============================================================================
// RECORDS AND KINDS
// =============================================================================

type Kind string

const (
	KindValidation Kind = "validation"
	KindTransient  Kind = "transient"
	KindUnknown    Kind = "unknown"
)

// Classify maps an error to its diagnostic kind.
func Classify(err error) Kind {
	switch {
	case attendance.IsValidation(err):
		return KindValidation
	case attendance.IsTransient(err):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Recorder is what the job launcher wires into the chunk runner.
type Recorder interface {
	pipeline.FailureSink

	// StepCounts returns failure counts by step for one job, for the
	// job-level summary report.
	StepCounts(job string) map[string]int
}

// =============================================================================
// FILE RECORDER
// =============================================================================

type FileRecorder struct {
	logger *logrus.Logger
	file   *os.File

	mu     sync.Mutex
	counts map[string]map[string]int
}

var _ Recorder = (*FileRecorder)(nil)

// NewFileRecorder opens (or creates) the append-only error log at path.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(f)
	logger.SetLevel(logrus.ErrorLevel)

	return &FileRecorder{
		logger: logger,
		file:   f,
		counts: make(map[string]map[string]int),
	}, nil
}

func (r *FileRecorder) Close() error { return r.file.Close() }

func (r *FileRecorder) RecordItemFailure(_ context.Context, job, step string, item any, err error) {
	r.bump(job, step)
	r.logger.WithFields(logrus.Fields{
		"record_id": uuid.NewString(),
		"job":       job,
		"step":      step,
		"kind":      Classify(err),
		"item":      fmt.Sprintf("%+v", item),
	}).Error(err.Error())
}

func (r *FileRecorder) RecordJobFailure(_ context.Context, job string, err error) {
	r.bump(job, "job")
	r.logger.WithFields(logrus.Fields{
		"record_id": uuid.NewString(),
		"job":       job,
		"step":      "job",
		"kind":      Classify(err),
	}).Error(err.Error())
}

func (r *FileRecorder) StepCounts(job string) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.counts[job]))
	for step, n := range r.counts[job] {
		out[step] = n
	}
	return out
}

func (r *FileRecorder) bump(job, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counts[job] == nil {
		r.counts[job] = make(map[string]int)
	}
	r.counts[job][step]++
}

// =============================================================================
// MEMORY RECORDER (tests)
// =============================================================================

type Record struct {
	Job     string
	Step    string
	Kind    Kind
	Message string
	Item    string
}

type MemoryRecorder struct {
	mu      sync.Mutex
	Records []Record
}

var _ Recorder = (*MemoryRecorder)(nil)

func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{} }

func (r *MemoryRecorder) RecordItemFailure(_ context.Context, job, step string, item any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, Record{
		Job: job, Step: step, Kind: Classify(err),
		Message: err.Error(), Item: fmt.Sprintf("%+v", item),
	})
}

func (r *MemoryRecorder) RecordJobFailure(_ context.Context, job string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, Record{
		Job: job, Step: "job", Kind: Classify(err), Message: err.Error(),
	})
}

func (r *MemoryRecorder) StepCounts(job string) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int)
	for _, rec := range r.Records {
		if rec.Job == job {
			out[rec.Step]++
		}
	}
	return out
}
