package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ss3211545/stock-web-app/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	err      error
	runs     int
}

func (j *fakeJob) Name() string                  { return j.name }
func (j *fakeJob) Schedule() string              { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error { j.runs++; return j.err }

func TestAddJob(t *testing.T) {
	s := New(logger.NewNop())

	job := &fakeJob{name: "screen", schedule: "0 35 14 * * MON-FRI"}
	require.NoError(t, s.AddJob(job))

	// Duplicate names are rejected.
	assert.Error(t, s.AddJob(&fakeJob{name: "screen", schedule: "@hourly"}))

	// Bad cron specs are rejected up front.
	assert.Error(t, s.AddJob(&fakeJob{name: "broken", schedule: "not a spec"}))
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond

	job := &fakeJob{name: "screen", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	history, err := s.GetJobHistory("screen")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
	assert.Equal(t, 1, job.runs)

	stats := s.GetJobStats()
	require.Contains(t, stats, "screen")
	assert.Equal(t, 1, stats["screen"].TotalRuns)
	assert.Equal(t, 1, stats["screen"].SuccessCount)
	assert.InDelta(t, 1.0, stats["screen"].SuccessRate, 1e-9)
	assert.NotNil(t, stats["screen"].LastSuccess)
}

func TestRunJob_RetriesThenFails(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond

	job := &fakeJob{name: "screen", schedule: "@hourly", err: errors.New("upstream down")}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	// Initial attempt plus two retries.
	assert.Equal(t, 3, job.runs)

	history, err := s.GetJobHistory("screen")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.False(t, history.Results[0].Success)
	assert.Equal(t, "upstream down", history.Results[0].Error)
}

func TestGetJobHistory_Unknown(t *testing.T) {
	s := New(logger.NewNop())
	_, err := s.GetJobHistory("ghost")
	assert.Error(t, err)
}

func TestJobHistory_Caps(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: "screen", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, 100)

	latest := h.GetLatestResults(3)
	assert.Len(t, latest, 3)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 0.01)
}
