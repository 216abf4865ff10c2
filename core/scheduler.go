package core

// slack converts a requested delay into an absolute deadline, never less
// than MinSlack ticks from now.
func (q *Queue) slack(delay Ticks) (now, deadline Ticks) {
	if delay < MinSlack {
		delay = MinSlack
	}
	now = q.now()
	return now, now + delay
}

// Modify schedules e to fire on this queue no earlier than
// now+max(delay, MinSlack). If e is already pending at exactly that
// deadline it returns StatusAlreadyScheduled and changes nothing.
//
// The hardware timer is reprogrammed only when the new deadline is sooner
// than the one currently armed, or nothing is armed.
func (q *Queue) Modify(e *Entry, delay Ticks) (Status, error) {
	if e == nil {
		return StatusArmed, ErrNilEntry
	}
	if !e.queue.CompareAndSwap(nil, q) && e.queue.Load() != q {
		return StatusArmed, ErrWrongQueue
	}

	now, deadline := q.slack(delay)

	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)

	if e.next != nil && e.expires == deadline {
		q.ring.record(EvtAlreadyScheduled, now, deadline, uint64(delay))
		return StatusAlreadyScheduled, nil
	}

	q.detach(e)
	e.expires = deadline
	q.append(e)
	q.ring.record(EvtArm, now, deadline, uint64(delay))

	if q.armed == 0 || deadline < q.armed {
		q.program(now, deadline)
	}
	return StatusArmed, nil
}

// Add arms e using the relative delay stored in it by SetExpires. e must
// not be pending.
func (q *Queue) Add(e *Entry) error {
	if e == nil {
		return ErrNilEntry
	}
	if e.Pending() {
		return ErrAlreadyPending
	}
	_, err := q.Modify(e, e.Expires())
	return err
}
