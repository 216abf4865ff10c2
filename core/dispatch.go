package core

import "fmt"

// RunExpiryPass fires every entry due within now+margin and reprograms the
// hardware for the next deadline. It is the softirq.Timer handler for this
// queue's CPU. A pass that starts while another pass on the same queue is
// running returns immediately.
//
// The pass visits the entries that were pending when it started. Each due
// entry is detached and marked firing under the lock; its callback then
// runs with the lock released, so the callback may re-arm or delete its own
// entry and delete others. Entries deleted before the pass reaches them are
// skipped.
//
// Callbacks run unlocked. Re-arming or deleting an entry from another CPU
// while its callback runs is not synchronized with that callback.
func (q *Queue) RunExpiryPass() {
	if !q.running.CompareAndSwap(false, true) {
		return
	}
	defer q.running.Store(false)

	policy := q.timers.policy
	now := q.now()
	limit := now + q.timers.margin

	state := q.lock.lockIRQSave()

	// The deadline that raised this pass has been consumed; anything
	// armed while callbacks run must reprogram the hardware itself.
	q.armed = 0

	batch := q.scratch[:0]
	for e := q.root.next; e != &q.root; e = e.next {
		batch = append(batch, e)
	}

	var next Ticks
	var found bool
	observe := func(deadline Ticks) {
		if policy == NextDeadlineLastObserved || !found || deadline < next {
			next = deadline
		}
		found = true
	}

	fired := 0
	for _, e := range batch {
		if e.next == nil {
			continue
		}
		if e.expires > limit {
			observe(e.expires)
			continue
		}

		deadline := e.expires
		q.detach(e)
		q.firing = e
		q.ring.record(EvtFire, now, deadline, 0)
		q.log.Debug().
			Uint64("now", uint64(now)).
			Uint64("deadline", uint64(deadline)).
			Msg("timer fired")
		q.lock.unlockIRQRestore(state)

		q.fire(e, deadline)
		fired++

		state = q.lock.lockIRQSave()
		q.firing = nil
		if e.next != nil {
			observe(e.expires)
		}
	}

	if policy == NextDeadlineMinimum {
		// Entries armed by callbacks on other queues' entries, or by other
		// contexts during the pass, are not in the batch.
		for e := q.root.next; e != &q.root; e = e.next {
			observe(e.expires)
		}
	}

	if found {
		q.program(now, next)
	} else {
		q.ring.record(EvtIdle, now, 0, uint64(fired))
	}
	q.lock.unlockIRQRestore(state)

	clear(batch)
	q.scratch = batch[:0]
}

// fire runs the callback of e. A panicking callback is logged and the pass
// carries on with the rest of the queue.
func (q *Queue) fire(e *Entry, deadline Ticks) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().
				Err(fmt.Errorf("timer callback panic: %v", r)).
				Uint64("deadline", uint64(deadline)).
				Msg("timer callback panicked")
		}
	}()
	if e.cb != nil {
		e.cb.Fire(e)
	}
}
