//go:build !tinygo

package core

// irqState is a placeholder for interrupt state on regular Go, where
// preemption is handled by the runtime and the mutex alone provides
// exclusion.
type irqState uintptr

// disableInterrupts is a no-op on regular Go (for testing and simulation)
func disableInterrupts() irqState {
	return 0
}

// restoreInterrupts is a no-op on regular Go (for testing and simulation)
func restoreInterrupts(state irqState) {
	// No-op
}
