package assistant

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultPollInitial = 250 * time.Millisecond
	DefaultPollMax     = 5 * time.Second
	DefaultPollTimeout = 3 * time.Minute
)

// PollPolicy bounds how a run is waited on: exponential backoff from Initial up to Max
// between checks, giving up after Timeout.
type PollPolicy struct {
	Initial time.Duration
	Max     time.Duration
	Timeout time.Duration
}

// DefaultPollPolicy returns the standard bounds.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Initial: DefaultPollInitial, Max: DefaultPollMax, Timeout: DefaultPollTimeout}
}

func (p PollPolicy) normalized() PollPolicy {
	if p.Initial <= 0 {
		p.Initial = DefaultPollInitial
	}
	if p.Max <= 0 {
		p.Max = DefaultPollMax
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultPollTimeout
	}
	return p
}

// Next returns the delay following d.
func (p PollPolicy) Next(d time.Duration) time.Duration {
	p = p.normalized()
	if d <= 0 {
		return p.Initial
	}
	next := d * 2
	if next > p.Max {
		next = p.Max
	}
	return next
}

// Wait calls check until it reports done or fails. The first check runs immediately.
// Exceeding Timeout yields ErrRunTimeout; a cancelled ctx yields ctx.Err().
func (p PollPolicy) Wait(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	p = p.normalized()
	deadline := time.Now().Add(p.Timeout)
	var delay time.Duration
	attempts := 0
	for {
		attempts++
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		delay = p.Next(delay)
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: after %d checks in %s", ErrRunTimeout, attempts, p.Timeout)
		}
		if delay > remaining {
			delay = remaining
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
