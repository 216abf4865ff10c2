package core

import "sync/atomic"

// Ticks is the unit of the monotonic time source. Deadlines are absolute
// ticks, delays are relative ticks.
type Ticks uint64

const (
	// MinSlack is the minimum delay applied when arming an entry. No entry
	// ever fires sooner than MinSlack ticks after it was armed, so bursts of
	// short requests share one hardware reprogram.
	MinSlack Ticks = 128

	// DefaultMargin is the fire-time window: entries due within
	// now+DefaultMargin are treated as expired by the dispatcher.
	DefaultMargin Ticks = 16
)

// Status reports the outcome of Modify. Neither value is an error.
type Status uint8

const (
	// StatusArmed means the entry was (re)attached with a new deadline.
	StatusArmed Status = iota
	// StatusAlreadyScheduled means the entry was already pending at exactly
	// the requested deadline and nothing changed.
	StatusAlreadyScheduled
)

func (s Status) String() string {
	switch s {
	case StatusArmed:
		return "armed"
	case StatusAlreadyScheduled:
		return "already-scheduled"
	default:
		return "unknown"
	}
}

// Callback is invoked by the dispatcher when an entry expires. The entry is
// already detached when Fire runs, so Fire may re-arm it through
// e.Queue().Modify or simply let it go.
//
// Fire runs on the expiry path of its CPU and must not block.
type Callback interface {
	Fire(e *Entry)
}

// CallbackFunc adapts a closure to Callback.
type CallbackFunc func(e *Entry)

// Fire calls f(e).
func (f CallbackFunc) Fire(e *Entry) { f(e) }

// Entry is a schedulable timer. The zero value is a detached entry with no
// callback; Init resets an entry to that state.
//
// An Entry belongs to the first queue it is armed on until the next Init.
// Every field except cb and queue is guarded by the owning queue's lock.
type Entry struct {
	next    *Entry // nil while detached
	prev    *Entry
	expires Ticks
	cb      Callback
	queue   atomic.Pointer[Queue]
}

// NewEntry returns an initialized, detached entry.
func NewEntry(cb Callback) *Entry {
	e := &Entry{}
	e.cb = cb
	return e
}

// Init resets e to the detached state with a zero deadline and the given
// callback (which may be nil). It fails with ErrAlreadyPending if e is
// still attached; an attached entry must be deleted first.
func (e *Entry) Init(cb Callback) error {
	if e == nil {
		return ErrNilEntry
	}
	if e.Pending() {
		return ErrAlreadyPending
	}
	e.next = nil
	e.prev = nil
	e.expires = 0
	e.cb = cb
	e.queue.Store(nil)
	return nil
}

// Pending reports whether e is attached to a queue's pending list.
func (e *Entry) Pending() bool {
	if e == nil {
		return false
	}
	q := e.queue.Load()
	if q == nil {
		return false
	}
	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)
	return e.next != nil
}

// Expires returns the stored deadline. While e is pending this is the
// absolute deadline; before Add it holds the caller's requested delay.
func (e *Entry) Expires() Ticks {
	if q := e.queue.Load(); q != nil {
		state := q.lock.lockIRQSave()
		defer q.lock.unlockIRQRestore(state)
	}
	return e.expires
}

// SetExpires stores the relative delay consumed by Queue.Add. It has no
// effect on a pending entry.
func (e *Entry) SetExpires(delay Ticks) {
	if q := e.queue.Load(); q != nil {
		state := q.lock.lockIRQSave()
		defer q.lock.unlockIRQRestore(state)
		if e.next != nil {
			return
		}
	}
	e.expires = delay
}

// Queue returns the owning queue, or nil if e was never armed since Init.
func (e *Entry) Queue() *Queue {
	return e.queue.Load()
}

// Delete detaches e from its owning queue. Deleting a detached entry, or
// one that was never armed, is a no-op.
func (e *Entry) Delete() error {
	if e == nil {
		return ErrNilEntry
	}
	q := e.queue.Load()
	if q == nil {
		return nil
	}
	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)

	if q.detach(e) {
		q.ring.record(EvtDelete, q.now(), e.expires, 0)
		q.log.Debug().Uint64("deadline", uint64(e.expires)).Msg("timer deleted")
	}
	return nil
}
