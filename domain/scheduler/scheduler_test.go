package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerIsRunning(t *testing.T) {
	s := NewScheduler(slog.New(slog.DiscardHandler))
	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	// Starting twice is a no-op.
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestSchedulerTaskRegistration(t *testing.T) {
	s := NewScheduler(slog.New(slog.DiscardHandler))
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddCronTask("sweep", "0 */5 * * * *", noop))
	require.NoError(t, s.AddIntervalTask("reaper", time.Minute, noop))
	assert.ElementsMatch(t, []string{"sweep", "reaper"}, s.ListTasks())

	// Re-adding replaces rather than duplicates.
	require.NoError(t, s.AddCronTask("sweep", "0 */10 * * * *", noop))
	assert.Len(t, s.ListTasks(), 2)

	s.RemoveTask("sweep")
	assert.Equal(t, []string{"reaper"}, s.ListTasks())

	err := s.AddCronTask("bad", "not a cron expression", noop)
	assert.Error(t, err)
}

func TestSchedulerRunsIntervalTask(t *testing.T) {
	s := NewScheduler(slog.New(slog.DiscardHandler))

	var runs atomic.Int32
	require.NoError(t, s.AddIntervalTask("tick", 50*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
