package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

type panickingJob struct{}

func (panickingJob) Name() string              { return "panicky" }
func (panickingJob) Description() string       { return "always panics" }
func (panickingJob) Run(context.Context) error { panic("boom") }

func TestScheduler_RunNowRecoversPanic(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Register(panickingJob{}, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "panicky")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestScheduler_RegisterDuplicate(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
}

func TestScheduler_RegisterNil(t *testing.T) {
	s := New(DefaultConfig())
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "a"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.DisableJob("a"))
	require.NoError(t, s.EnableJob("a"))
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(30 * time.Second)
	now := time.Now()
	assert.Equal(t, now.Add(30*time.Second), s.Next(now))
	assert.Contains(t, s.String(), "30s")

	// A zero interval is floored, not allowed to fire on every tick.
	assert.Equal(t, time.Second, NewIntervalSchedule(0).Interval)
}

func TestCronExpression_Parse(t *testing.T) {
	cases := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/5 * * * *", false},
		{"0 0 * * 0", false},
		{"15,45 9-17 * * 1-5", false},
		{"* * * *", true},     // 4 fields
		{"60 * * * *", true},  // minute out of range
		{"* 24 * * *", true},  // hour out of range
		{"bad * * * *", true}, // not a number
	}
	for _, c := range cases {
		_, err := ParseCronExpression(c.expr)
		if c.wantErr {
			assert.Error(t, err, c.expr)
		} else {
			assert.NoError(t, err, c.expr)
		}
	}
}

func TestMustParseCron_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustParseCron("not a cron") })
}

func TestCronExpression_NextDailyAtThree(t *testing.T) {
	ce := MustParseCron("0 3 * * *")

	// Before 03:00 rolls to 03:00 the same day.
	after := time.Date(2026, 5, 10, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC), ce.Next(after))

	// After 03:00 rolls to 03:00 the next day.
	after = time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 11, 3, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronExpression_NextEveryFiveMinutes(t *testing.T) {
	ce := MustParseCron("*/5 * * * *")

	after := time.Date(2026, 5, 10, 12, 3, 20, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 10, 12, 5, 0, 0, time.UTC), ce.Next(after))

	// Exactly on a match advances to the next slot.
	after = time.Date(2026, 5, 10, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 10, 12, 10, 0, 0, time.UTC), ce.Next(after))
}

func TestCronExpression_Weekday(t *testing.T) {
	// Sundays at midnight. 2026-05-10 is a Sunday.
	ce := MustParseCron("0 0 * * 0")

	after := time.Date(2026, 5, 8, 10, 0, 0, 0, time.UTC) // Friday
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestScheduler_MetricsRecordExecutions(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "a"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 2; i++ {
		_, err := s.RunNow(context.Background(), "a")
		require.NoError(t, err)
	}

	snapshot := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalExecutions)
	assert.Equal(t, int64(0), snapshot.TotalFailures)
}
