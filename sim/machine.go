// Package sim provides a simulated machine for host-side testing: a
// monotonic tick counter shared by all cores and one one-shot comparator per
// core. When time passes a programmed comparator the machine delivers the
// timer interrupt by raising softirq.Timer on that core and running its
// softirqs, the way an interrupt return would.
package sim

import (
	"sync"
	"sync/atomic"

	"hvtimer/core"
	"hvtimer/softirq"
)

type comparator struct {
	deadline core.Ticks // 0 = disarmed
	programs uint64
	fired    uint64
}

var (
	_ core.Clock         = (*Machine)(nil)
	_ core.HardwareTimer = (*Machine)(nil)
)

// Machine implements core.Clock and core.HardwareTimer.
type Machine struct {
	now atomic.Uint64

	mu   sync.Mutex
	cmps []comparator

	irq *softirq.Framework
}

// NewMachine returns a machine with cpus disarmed comparators, delivering
// interrupts to irq. The clock starts at zero.
func NewMachine(cpus int, irq *softirq.Framework) *Machine {
	return &Machine{
		cmps: make([]comparator, cpus),
		irq:  irq,
	}
}

// CPUs returns the number of cores.
func (m *Machine) CPUs() int { return len(m.cmps) }

// Now returns the current tick count.
func (m *Machine) Now() core.Ticks {
	return core.Ticks(m.now.Load())
}

// Set moves the clock to t without delivering interrupts. The clock never
// goes backwards; an earlier t is ignored.
func (m *Machine) Set(t core.Ticks) {
	for {
		cur := m.now.Load()
		if uint64(t) <= cur || m.now.CompareAndSwap(cur, uint64(t)) {
			return
		}
	}
}

// Program arms the comparator of cpu, replacing the previous deadline.
func (m *Machine) Program(cpu int, deadline core.Ticks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cpu < 0 || cpu >= len(m.cmps) {
		return
	}
	m.cmps[cpu].deadline = deadline
	m.cmps[cpu].programs++
}

// Comparator returns the deadline programmed on cpu and whether it is armed.
func (m *Machine) Comparator(cpu int) (core.Ticks, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cpu < 0 || cpu >= len(m.cmps) {
		return 0, false
	}
	d := m.cmps[cpu].deadline
	return d, d != 0
}

// Programs returns how many times the comparator of cpu was programmed.
func (m *Machine) Programs(cpu int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cpu < 0 || cpu >= len(m.cmps) {
		return 0
	}
	return m.cmps[cpu].programs
}

// Interrupts returns how many timer interrupts cpu has taken.
func (m *Machine) Interrupts(cpu int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cpu < 0 || cpu >= len(m.cmps) {
		return 0
	}
	return m.cmps[cpu].fired
}

// Advance moves the clock forward by d and delivers due interrupts.
func (m *Machine) Advance(d core.Ticks) {
	m.now.Add(uint64(d))
	m.Tick()
}

// Tick delivers the interrupt of every core whose comparator is at or
// before now. A comparator is one-shot: it disarms when it fires.
func (m *Machine) Tick() {
	for cpu := range m.cmps {
		m.TickCPU(cpu)
	}
}

// TickCPU delivers the timer interrupt of one core if it is due.
func (m *Machine) TickCPU(cpu int) {
	now := m.Now()

	m.mu.Lock()
	if cpu < 0 || cpu >= len(m.cmps) {
		m.mu.Unlock()
		return
	}
	c := &m.cmps[cpu]
	due := c.deadline != 0 && c.deadline <= now
	if due {
		c.deadline = 0
		c.fired++
	}
	m.mu.Unlock()

	if !due || m.irq == nil {
		return
	}
	if err := m.irq.Raise(cpu, softirq.Timer); err != nil {
		return
	}
	_ = m.irq.Run(cpu)
}
