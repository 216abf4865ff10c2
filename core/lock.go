package core

import "sync"

// irqLock is the per-queue spinlock equivalent. Interrupts are disabled on
// the owning core before the mutex is taken so that an expiry pass or an
// interrupt-context caller on the same core cannot deadlock against a
// holder it preempted.
type irqLock struct {
	mu sync.Mutex
}

func (l *irqLock) lockIRQSave() irqState {
	state := disableInterrupts()
	l.mu.Lock()
	return state
}

func (l *irqLock) unlockIRQRestore(state irqState) {
	l.mu.Unlock()
	restoreInterrupts(state)
}
