package fsm

import "time"

// Timer is a start timestamp plus a duration, checked by wall-clock
// comparison on each supervisor tick rather than suspended on a
// goroutine (spec.md section 3, "Per FSM" data model: "three timers
// each consisting of a start timestamp and a duration"). A zero
// duration disables the timer: Expired never fires one.
type Timer struct {
	start    time.Time
	duration time.Duration
	running  bool
}

// Reset (re)starts the timer at now, running for duration. A duration
// of zero disables the timer per spec.md section 4.2's hold-timer
// rule, reused here for all three timers.
func (t *Timer) Reset(now time.Time, duration time.Duration) {
	t.start = now
	t.duration = duration
	t.running = duration > 0
}

// Stop disables the timer; Expired returns false until the next Reset.
func (t *Timer) Stop() {
	t.running = false
}

// Running reports whether the timer is currently armed.
func (t *Timer) Running() bool {
	return t.running
}

// Expired reports whether the timer is armed and now is at or past its
// deadline.
func (t *Timer) Expired(now time.Time) bool {
	return t.running && !now.Before(t.start.Add(t.duration))
}
