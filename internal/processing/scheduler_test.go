package processing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerSchedulerRequiresStart(t *testing.T) {
	s := NewTimerScheduler(zerolog.Nop())
	_, err := s.Schedule(context.Background(), Job{InvoiceID: "a"}, time.Millisecond)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestTimerSchedulerRunsJob(t *testing.T) {
	s := NewTimerScheduler(zerolog.Nop())
	got := make(chan Job, 1)
	require.NoError(t, s.Start(context.Background(), HandlerFunc(func(_ context.Context, job Job) error {
		got <- job
		return nil
	})))

	_, err := s.Schedule(context.Background(), Job{InvoiceID: "a", Stage: StageStart}, time.Millisecond)
	require.NoError(t, err)

	select {
	case job := <-got:
		assert.Equal(t, "a", job.InvoiceID)
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestTimerSchedulerCancelAndStop(t *testing.T) {
	s := NewTimerScheduler(zerolog.Nop())
	var runs atomic.Int32
	require.NoError(t, s.Start(context.Background(), HandlerFunc(func(context.Context, Job) error {
		runs.Add(1)
		return nil
	})))

	task, err := s.Schedule(context.Background(), Job{InvoiceID: "a"}, 50*time.Millisecond)
	require.NoError(t, err)
	_, err = s.Schedule(context.Background(), Job{InvoiceID: "b"}, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Pending())

	assert.True(t, task.Cancel())
	assert.False(t, task.Cancel())
	assert.Equal(t, 1, s.Pending())

	s.Stop()
	assert.Zero(t, s.Pending())

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, runs.Load())
}

func TestTimerSchedulerRejectsJobsAfterStop(t *testing.T) {
	s := NewTimerScheduler(zerolog.Nop())
	release := make(chan struct{})
	scheduled := make(chan error, 1)
	require.NoError(t, s.Start(context.Background(), HandlerFunc(func(ctx context.Context, job Job) error {
		if job.Stage != StageStart {
			return nil
		}
		// A start callback still running when Stop fires.
		<-release
		_, err := s.Schedule(ctx, Job{InvoiceID: job.InvoiceID, Stage: StageFinish}, time.Millisecond)
		scheduled <- err
		return nil
	})))

	_, err := s.Schedule(context.Background(), Job{InvoiceID: "a", Stage: StageStart}, time.Millisecond)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, time.Millisecond)

	s.Stop()
	close(release)

	select {
	case err := <-scheduled:
		assert.ErrorIs(t, err, ErrNotStarted)
	case <-time.After(time.Second):
		t.Fatal("start callback never finished")
	}
	assert.Zero(t, s.Pending())

	require.NoError(t, s.Start(context.Background(), HandlerFunc(func(context.Context, Job) error { return nil })))
	_, err = s.Schedule(context.Background(), Job{InvoiceID: "b"}, time.Hour)
	assert.NoError(t, err)
	s.Stop()
}
