package core

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Queue is the timer queue of one CPU. Pending entries live on an unordered
// list; the dispatcher scans all of them on every pass.
//
// The lock guards the list, every attached entry's links and deadline,
// armed and firing.
type Queue struct {
	lock irqLock

	cpu    int
	timers *Timers
	log    zerolog.Logger

	root Entry // sentinel; root.next is the first pending entry
	n    int

	// armed is the deadline currently programmed into the hardware, 0 when
	// nothing is armed.
	armed  Ticks
	firing *Entry

	running atomic.Bool
	scratch []*Entry

	ring timingRing
}

func newQueue(t *Timers, cpu int) *Queue {
	q := &Queue{
		cpu:    cpu,
		timers: t,
		log:    t.log.With().Int("cpu", cpu).Logger(),
	}
	q.root.next = &q.root
	q.root.prev = &q.root
	return q
}

// CPU returns the core this queue belongs to.
func (q *Queue) CPU() int { return q.cpu }

// Armed returns the deadline programmed into the hardware, and false if
// nothing is armed.
func (q *Queue) Armed() (Ticks, bool) {
	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)
	return q.armed, q.armed != 0
}

// Firing returns the entry whose callback is running, or nil.
func (q *Queue) Firing() *Entry {
	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)
	return q.firing
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)
	return q.n
}

// Snapshot returns the deadlines of all pending entries in list order.
func (q *Queue) Snapshot() []Ticks {
	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)

	out := make([]Ticks, 0, q.n)
	for e := q.root.next; e != &q.root; e = e.next {
		out = append(out, e.expires)
	}
	return out
}

func (q *Queue) now() Ticks {
	return q.timers.clock.Now()
}

// append links e at the tail. Caller holds the lock and e is detached.
func (q *Queue) append(e *Entry) {
	last := q.root.prev
	e.prev = last
	e.next = &q.root
	last.next = e
	q.root.prev = e
	q.n++
}

// detach unlinks e if it is pending and reports whether it was. Caller
// holds the lock.
func (q *Queue) detach(e *Entry) bool {
	if e.next == nil {
		return false
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
	q.n--
	return true
}

// program arms the hardware for deadline. Caller holds the lock.
func (q *Queue) program(now, deadline Ticks) {
	q.armed = deadline
	q.timers.hw.Program(q.cpu, deadline)
	q.ring.record(EvtReprogram, now, deadline, 0)
	q.log.Debug().
		Uint64("now", uint64(now)).
		Uint64("deadline", uint64(deadline)).
		Msg("hardware timer programmed")
}
