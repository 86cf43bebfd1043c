// Package timing implements single-shot millisecond countdown timers used
// throughout the host and protocol control units.
package timing

// Timer is a single-shot millisecond countdown with pause/resume support.
// Clock is driven explicitly by the caller with an elapsed-ms delta; nothing
// here touches the wall clock itself.
type Timer struct {
	timeoutMS int
	elapsedMS int
	running   bool
}

// New creates a timer with the given timeout in milliseconds. A zero timeout
// never expires until SetTimeout gives it one.
func New(timeoutMS int) *Timer {
	return &Timer{timeoutMS: timeoutMS}
}

// SetTimeout changes the timeout without affecting the running state.
func (t *Timer) SetTimeout(timeoutMS int) {
	t.timeoutMS = timeoutMS
}

// Timeout returns the configured timeout in milliseconds.
func (t *Timer) Timeout() int {
	return t.timeoutMS
}

// Start begins (or restarts) the countdown from zero.
func (t *Timer) Start() {
	t.elapsedMS = 0
	t.running = true
}

// Stop halts the timer and resets its elapsed time.
func (t *Timer) Stop() {
	t.running = false
	t.elapsedMS = 0
}

// Pause halts the timer without resetting elapsed time, so Resume continues
// from exactly where it left off.
func (t *Timer) Pause() {
	t.running = false
}

// Resume continues a paused timer from its retained elapsed time. After
// Stop, which clears elapsed, Resume sets the timer counting from zero.
func (t *Timer) Resume() {
	t.running = true
}

// IsRunning reports whether the timer is currently counting down.
func (t *Timer) IsRunning() bool {
	return t.running
}

// HasExpired reports whether the elapsed time has reached the timeout. A
// timer with a zero timeout never expires.
func (t *Timer) HasExpired() bool {
	if t.timeoutMS == 0 {
		return false
	}
	return t.elapsedMS >= t.timeoutMS
}

// Clock advances the timer by elapsedMS milliseconds. No-op while paused or
// stopped.
func (t *Timer) Clock(elapsedMS int) {
	if !t.running {
		return
	}
	t.elapsedMS += elapsedMS
}

// Elapsed returns the milliseconds counted so far.
func (t *Timer) Elapsed() int {
	return t.elapsedMS
}

// Remaining returns the milliseconds left before expiry, floored at zero.
func (t *Timer) Remaining() int {
	remaining := t.timeoutMS - t.elapsedMS
	if remaining < 0 {
		return 0
	}
	return remaining
}
