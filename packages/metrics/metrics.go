// Package metrics aggregates per-run outcome counters and command latency.
package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Recorder collects test outcomes and command runtimes for one run. The
// runner is sequential, so no locking is needed.
type Recorder struct {
	// Histogram: 1us to 60s range, 3 significant digits
	histogram *hdrhistogram.Histogram

	passed  int
	failed  int
	skipped int
	errors  int

	startTime time.Time
	endTime   time.Time
}

// Summary is the aggregate view printed at the end of a run and written to
// the history database.
type Summary struct {
	Passed   int
	Failed   int
	Skipped  int
	Errors   int
	Duration time.Duration
	P50      time.Duration
	P95      time.Duration
	P99      time.Duration
	Max      time.Duration
}

// Total counts every test the run touched.
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Skipped + s.Errors
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		histogram: hdrhistogram.New(1, 60_000_000, 3),
	}
}

// Start marks the beginning of the run.
func (r *Recorder) Start() {
	r.startTime = time.Now()
}

// Stop marks the end of the run.
func (r *Recorder) Stop() {
	r.endTime = time.Now()
}

// RecordPass records a successful test and its command runtime.
func (r *Recorder) RecordPass(runtime time.Duration) {
	r.passed++
	r.record(runtime)
}

// RecordFail records a failed test and its command runtime.
func (r *Recorder) RecordFail(runtime time.Duration) {
	r.failed++
	r.record(runtime)
}

// RecordSkip records a test skipped by its condition gate or the filter.
func (r *Recorder) RecordSkip() {
	r.skipped++
}

// RecordError records a test aborted by an unexpected collaborator failure.
func (r *Recorder) RecordError() {
	r.errors++
}

func (r *Recorder) record(runtime time.Duration) {
	us := runtime.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > 60_000_000 {
		us = 60_000_000
	}
	_ = r.histogram.RecordValue(us)
}

// Summarize returns the aggregated run result.
func (r *Recorder) Summarize() Summary {
	end := r.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return Summary{
		Passed:   r.passed,
		Failed:   r.failed,
		Skipped:  r.skipped,
		Errors:   r.errors,
		Duration: end.Sub(r.startTime),
		P50:      time.Duration(r.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:      time.Duration(r.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:      time.Duration(r.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Max:      time.Duration(r.histogram.Max()) * time.Microsecond,
	}
}
