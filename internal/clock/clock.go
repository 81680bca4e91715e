// Package clock abstracts time so waits can be driven deterministically in tests.
package clock

import (
	"context"
	"time"
)

// Clock knows the current time and how to wait.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until the context is done, in that case returns the context error.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the clock backed by the system time.
var Real Clock = realClock{}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
