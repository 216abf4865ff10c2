package core

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"hvtimer/softirq"
)

type testClock struct {
	now atomic.Uint64
}

func (c *testClock) Now() Ticks  { return Ticks(c.now.Load()) }
func (c *testClock) Set(t Ticks) { c.now.Store(uint64(t)) }
func (c *testClock) Add(d Ticks) { c.now.Add(uint64(d)) }

type programCall struct {
	cpu      int
	deadline Ticks
}

type testHW struct {
	mu    sync.Mutex
	calls []programCall
}

func (h *testHW) Program(cpu int, deadline Ticks) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, programCall{cpu: cpu, deadline: deadline})
}

func (h *testHW) deadlines(cpu int) []Ticks {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Ticks
	for _, c := range h.calls {
		if c.cpu == cpu {
			out = append(out, c.deadline)
		}
	}
	return out
}

func (h *testHW) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type testIRQ struct {
	mu       sync.Mutex
	handlers map[softirq.ID]softirq.Handler
}

func (r *testIRQ) Open(id softirq.ID, h softirq.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[softirq.ID]softirq.Handler)
	}
	if _, ok := r.handlers[id]; ok {
		return softirq.ErrSlotInUse
	}
	r.handlers[id] = h
	return nil
}

type testEnv struct {
	timers *Timers
	clock  *testClock
	hw     *testHW
	irq    *testIRQ
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		clock: &testClock{},
		hw:    &testHW{},
		irq:   &testIRQ{},
	}
	timers, err := New(cfg, env.clock, env.hw, env.irq, opts...)
	require.NoError(t, err)
	require.NoError(t, timers.Init())
	env.timers = timers
	return env
}

func (env *testEnv) queue(t *testing.T, cpu int) *Queue {
	t.Helper()
	q, err := env.timers.Queue(cpu)
	require.NoError(t, err)
	return q
}

// counter returns a callback counting its invocations.
func counter() (*atomic.Int32, Callback) {
	var n atomic.Int32
	return &n, CallbackFunc(func(*Entry) { n.Add(1) })
}
