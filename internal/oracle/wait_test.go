package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencyrus/safeupload/internal/storage"
)

type scriptedVideo struct {
	results []JobResult
	calls   int
	pollErr error
}

func (s *scriptedVideo) StartJob(context.Context, storage.Ref) (string, error) { return "job-1", nil }

func (s *scriptedVideo) Poll(context.Context, string) (JobResult, error) {
	if s.pollErr != nil {
		return JobResult{}, s.pollErr
	}
	r := s.results[min(s.calls, len(s.results)-1)]
	s.calls++
	return r, nil
}

func TestWaitReturnsWhenDone(t *testing.T) {
	calls := 0
	err := Wait(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitPropagatesPollError(t *testing.T) {
	boom := errors.New("boom")
	err := Wait(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWaitTimesOut(t *testing.T) {
	err := Wait(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWaitParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Wait(ctx, time.Millisecond, time.Minute, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestAwaitVideo(t *testing.T) {
	t.Run("succeeds after in progress", func(t *testing.T) {
		v := &scriptedVideo{results: []JobResult{
			{Status: JobInProgress},
			{Status: JobInProgress},
			{Status: JobSucceeded, Labels: []Label{{Name: "Violence", Confidence: 85}}},
		}}
		res, err := AwaitVideo(context.Background(), v, "job-1", time.Millisecond, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 3, v.calls)
		assert.Equal(t, JobSucceeded, res.Status)
		assert.Len(t, res.Labels, 1)
	})

	t.Run("failed job", func(t *testing.T) {
		v := &scriptedVideo{results: []JobResult{{Status: JobFailed, Message: "bad codec"}}}
		_, err := AwaitVideo(context.Background(), v, "job-1", time.Millisecond, time.Second)
		require.ErrorIs(t, err, ErrJobFailed)
		assert.Contains(t, err.Error(), "bad codec")
	})

	t.Run("never terminal", func(t *testing.T) {
		v := &scriptedVideo{results: []JobResult{{Status: JobInProgress}}}
		_, err := AwaitVideo(context.Background(), v, "job-1", time.Millisecond, 20*time.Millisecond)
		assert.ErrorIs(t, err, ErrTimeout)
	})
}
