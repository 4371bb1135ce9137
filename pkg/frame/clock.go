package frame

import (
	"context"
	"errors"
	"time"
)

// DefaultFrameRate is the display refresh rate used by TickerClock.
const DefaultFrameRate = 60

// Clock is the display refresh signal. Next blocks until the next frame.
type Clock interface {
	Next(ctx context.Context) error
}

// TickerClock delivers frames at a fixed rate.
type TickerClock struct {
	ticker *time.Ticker
}

// NewTickerClock creates a clock running at fps frames per second.
func NewTickerClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &TickerClock{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// Next waits for the next tick.
func (c *TickerClock) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (c *TickerClock) Stop() {
	c.ticker.Stop()
}

// ErrClockExhausted is returned by ManualClock once its frame budget is spent.
var ErrClockExhausted = errors.New("frame: clock exhausted")

// ManualClock is a deterministic clock for tests and for hosts that own
// their own event loop. Each Next call counts one yield and runs BeforeFrame,
// so inputs can be changed between iterations without a second goroutine.
type ManualClock struct {
	Frames      int    // Yield budget; Next fails once it is spent
	BeforeFrame func() // optional, runs on every successful Next

	yields int
}

// Next consumes one frame from the budget.
func (c *ManualClock) Next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.yields >= c.Frames {
		return ErrClockExhausted
	}
	c.yields++
	if c.BeforeFrame != nil {
		c.BeforeFrame()
	}
	return nil
}

// Yields returns how many frames were handed out.
func (c *ManualClock) Yields() int {
	return c.yields
}
