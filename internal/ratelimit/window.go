package ratelimit

import "time"

// WindowCounter holds the request timestamps for one key under one rule.
// It only stores and trims timestamps - the cap itself is enforced by the
// limiter, so storage and policy stay separate.
type WindowCounter struct {
	window     time.Duration
	timestamps []time.Time
}

func NewWindowCounter(window time.Duration) *WindowCounter {
	return &WindowCounter{window: window}
}

// Trim drops entries older than now minus the window. Trimming is lazy -
// it only happens when the counter is consulted. Entries with a timestamp
// after now are kept, so a backward clock jump never loses requests.
func (w *WindowCounter) Trim(now time.Time) {
	cutoff := now.Add(-w.window)

	expired := 0
	for expired < len(w.timestamps) && w.timestamps[expired].Before(cutoff) {
		expired++
	}

	if expired > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[expired:]...)
	}
}

// Count returns the number of requests inside the trailing window.
func (w *WindowCounter) Count(now time.Time) int {
	w.Trim(now)
	return len(w.timestamps)
}

// Record appends a request timestamp. The caller must have verified
// capacity first.
func (w *WindowCounter) Record(now time.Time) {
	w.timestamps = append(w.timestamps, now)
}

// RetryAfter returns how long until the oldest entry ages out of the
// window. Zero when the counter is empty or the oldest entry has already
// expired.
func (w *WindowCounter) RetryAfter(now time.Time) time.Duration {
	if len(w.timestamps) == 0 {
		return 0
	}

	wait := w.timestamps[0].Add(w.window).Sub(now)
	if wait < 0 {
		wait = 0
	}

	return wait
}
