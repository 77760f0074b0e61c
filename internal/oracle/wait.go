package oracle

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is the cadence used when callers pass zero.
const DefaultPollInterval = 5 * time.Second

// Wait calls poll immediately and then every interval until it reports done,
// returns an error, or ctx ends. A positive timeout bounds the whole wait and
// surfaces as ErrTimeout; cancellation of ctx itself returns ctx's error.
func Wait(ctx context.Context, interval, timeout time.Duration, poll func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}
	}
}

// AwaitVideo polls jobID until it is terminal. A FAILED job returns
// ErrJobFailed with the service's status message.
func AwaitVideo(ctx context.Context, scanner VideoScanner, jobID string, interval, timeout time.Duration) (JobResult, error) {
	var last JobResult
	err := Wait(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		res, err := scanner.Poll(ctx, jobID)
		if err != nil {
			return false, err
		}
		last = res
		return res.Status.Terminal(), nil
	})
	if err != nil {
		return JobResult{}, err
	}
	if last.Status == JobFailed {
		return last, fmt.Errorf("video moderation job %s: %w: %s", jobID, ErrJobFailed, last.Message)
	}
	return last, nil
}
