package tracker

import (
	"sync"
	"time"
)

// Clock supplies the current time to the pipeline.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// StepClock advances by a fixed step on every call to Now. It gives video
// files a timeline based on frame position instead of processing speed.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepClock returns a clock whose first reading is start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, step: step}
}

// FrameClock returns a StepClock ticking once per frame at fps.
func FrameClock(fps int) *StepClock {
	step := time.Second / 30
	if fps > 0 {
		step = time.Second / time.Duration(fps)
	}
	return NewStepClock(time.Time{}, step)
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// Interval converts a samples-per-second rate into the minimum spacing
// between recorded samples. A non-positive rate means no limit.
func Interval(samplesPerSecond int) time.Duration {
	if samplesPerSecond <= 0 {
		return 0
	}
	return time.Second / time.Duration(samplesPerSecond)
}

// Due reports whether a sample may be recorded given the time since the
// previous recorded sample.
func Due(sinceLast, interval time.Duration) bool {
	return interval <= 0 || sinceLast >= interval
}

// RateLimiter decides which frames become recorded samples.
type RateLimiter struct {
	interval time.Duration
	last     time.Time
	primed   bool
}

// NewRateLimiter creates a RateLimiter for the given rate. A non-positive
// rate accepts every frame.
func NewRateLimiter(samplesPerSecond int) *RateLimiter {
	return &RateLimiter{interval: Interval(samplesPerSecond)}
}

// Allow reports whether a frame at now should be recorded, and if so marks
// it as the latest recorded sample. The first call always succeeds.
func (r *RateLimiter) Allow(now time.Time) bool {
	if r.primed && !Due(now.Sub(r.last), r.interval) {
		return false
	}
	r.last = now
	r.primed = true
	return true
}

// Reset forgets the last recorded sample.
func (r *RateLimiter) Reset() {
	r.last = time.Time{}
	r.primed = false
}
