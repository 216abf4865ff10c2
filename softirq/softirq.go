// Package softirq is a small deferred-execution framework. Interrupt
// handlers raise a numbered slot on their core; Run later drains the raised
// slots on that core with interrupts enabled, calling the handler opened for
// each slot.
//
// Passes on different cores are independent. On one core Run is never
// nested: a Run that starts while another is in progress on the same core
// returns at once and the running pass picks up the new work.
package softirq

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ID identifies a softirq slot. Lower IDs run first.
type ID uint8

const (
	HI ID = iota
	Timer
	NetTX
	NetRX
	Block
	Tasklet
	Sched
	NR // number of slots
)

func (id ID) String() string {
	switch id {
	case HI:
		return "HI"
	case Timer:
		return "TIMER"
	case NetTX:
		return "NET_TX"
	case NetRX:
		return "NET_RX"
	case Block:
		return "BLOCK"
	case Tasklet:
		return "TASKLET"
	case Sched:
		return "SCHED"
	default:
		return fmt.Sprintf("SOFTIRQ(%d)", uint8(id))
	}
}

// MaxRestart bounds how many times Run re-scans slots raised while it was
// running before leaving them for the next Run.
const MaxRestart = 10

// Handler runs a softirq on cpu.
type Handler func(cpu int)

var (
	ErrInvalidID  = errors.New("softirq: invalid id")
	ErrInvalidCPU = errors.New("softirq: invalid cpu")
	ErrSlotInUse  = errors.New("softirq: slot already open")
	ErrNilHandler = errors.New("softirq: nil handler")
)

type cpuState struct {
	pending atomic.Uint32
	running atomic.Bool
	runs    atomic.Uint64
}

// Framework holds the slot table and per-core pending state.
type Framework struct {
	mu       sync.RWMutex
	handlers [NR]Handler

	cpus []cpuState
	log  zerolog.Logger
}

// Option configures a Framework.
type Option func(*Framework)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Framework) {
		f.log = l
	}
}

// New returns a framework for cpus cores with no slots open.
func New(cpus int, opts ...Option) *Framework {
	if cpus <= 0 {
		panic("softirq: cpu count must be positive")
	}
	f := &Framework{
		cpus: make([]cpuState, cpus),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open registers handler for id. Each slot can be opened once.
func (f *Framework) Open(id ID, handler Handler) error {
	if id >= NR {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if handler == nil {
		return ErrNilHandler
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[id] != nil {
		return fmt.Errorf("%w: %s", ErrSlotInUse, id)
	}
	f.handlers[id] = handler
	f.log.Debug().Stringer("softirq", id).Msg("softirq opened")
	return nil
}

// Raise marks id pending on cpu. It is safe from any context and does not
// run anything itself.
func (f *Framework) Raise(cpu int, id ID) error {
	if id >= NR {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	st, err := f.cpu(cpu)
	if err != nil {
		return err
	}
	st.pending.Or(1 << id)
	return nil
}

// Pending returns the raised-slot mask of cpu.
func (f *Framework) Pending(cpu int) uint32 {
	st, err := f.cpu(cpu)
	if err != nil {
		return 0
	}
	return st.pending.Load()
}

// Runs returns how many times handlers have been run on cpu.
func (f *Framework) Runs(cpu int) uint64 {
	st, err := f.cpu(cpu)
	if err != nil {
		return 0
	}
	return st.runs.Load()
}

// Run drains the raised slots of cpu in ID order. Slots raised by the
// handlers themselves are picked up by a rescan, up to MaxRestart times.
// A raised slot with no handler is dropped.
func (f *Framework) Run(cpu int) error {
	st, err := f.cpu(cpu)
	if err != nil {
		return err
	}
	if !st.running.CompareAndSwap(false, true) {
		return nil
	}
	defer st.running.Store(false)

	f.mu.RLock()
	handlers := f.handlers
	f.mu.RUnlock()

	for restart := 0; restart < MaxRestart; restart++ {
		pending := st.pending.Swap(0)
		if pending == 0 {
			return nil
		}
		for id := ID(0); id < NR; id++ {
			if pending&(1<<id) == 0 {
				continue
			}
			h := handlers[id]
			if h == nil {
				f.log.Warn().Int("cpu", cpu).Stringer("softirq", id).Msg("softirq raised with no handler")
				continue
			}
			st.runs.Add(1)
			h(cpu)
		}
	}
	if st.pending.Load() != 0 {
		f.log.Debug().Int("cpu", cpu).Msg("softirq restart limit reached, deferring")
	}
	return nil
}

func (f *Framework) cpu(cpu int) (*cpuState, error) {
	if cpu < 0 || cpu >= len(f.cpus) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCPU, cpu)
	}
	return &f.cpus[cpu], nil
}
