package core

import "hvtimer/softirq"

// Clock is the monotonic time source.
type Clock interface {
	// Now returns the current time in ticks. It must never go backwards.
	Now() Ticks
}

// HardwareTimer is the per-core one-shot timer device.
type HardwareTimer interface {
	// Program arms the one-shot timer of cpu for deadline, replacing any
	// deadline programmed earlier. It is called with the queue lock held
	// and must not call back into this package.
	Program(cpu int, deadline Ticks)
}

// SoftIRQ is the deferred-execution framework the dispatcher is registered
// with. A hardware timer interrupt on a core raises softirq.Timer on that
// same core; the framework then runs the registered handler outside hard
// interrupt context.
type SoftIRQ interface {
	Open(id softirq.ID, handler softirq.Handler) error
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() Ticks

// Now calls f.
func (f ClockFunc) Now() Ticks { return f() }

// HardwareTimerFunc adapts a function to HardwareTimer.
type HardwareTimerFunc func(cpu int, deadline Ticks)

// Program calls f.
func (f HardwareTimerFunc) Program(cpu int, deadline Ticks) { f(cpu, deadline) }
