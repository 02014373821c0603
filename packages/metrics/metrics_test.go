package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.Start()

	r.RecordPass(10 * time.Millisecond)
	r.RecordPass(20 * time.Millisecond)
	r.RecordFail(30 * time.Millisecond)
	r.RecordSkip()
	r.RecordError()

	r.Stop()
	s := r.Summarize()

	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 5, s.Total())
	assert.GreaterOrEqual(t, s.Duration, time.Duration(0))
}

func TestRecorderQuantiles(t *testing.T) {
	r := NewRecorder()
	r.Start()
	for i := 1; i <= 100; i++ {
		r.RecordPass(time.Duration(i) * time.Millisecond)
	}
	r.Stop()

	s := r.Summarize()
	assert.InDelta(t, (50 * time.Millisecond).Microseconds(), s.P50.Microseconds(), 2000)
	assert.InDelta(t, (95 * time.Millisecond).Microseconds(), s.P95.Microseconds(), 2000)
	assert.InDelta(t, (100 * time.Millisecond).Microseconds(), s.Max.Microseconds(), 2000)
}

func TestRecorderClampsOutliers(t *testing.T) {
	r := NewRecorder()
	r.Start()
	r.RecordPass(0)
	r.RecordPass(2 * time.Hour)
	r.Stop()

	s := r.Summarize()
	assert.LessOrEqual(t, s.Max, 61*time.Second)
}
