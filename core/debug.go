package core

// TimingEvent captures a queue event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Clock     Ticks  // Time source reading at event
	Deadline  Ticks  // Deadline involved, if any
	Value     uint64 // Context-dependent value
}

// Event type codes
const (
	EvtArm              = 1 // Entry attached with a new deadline; Value = requested delay
	EvtAlreadyScheduled = 2 // Modify fast path; Value = requested delay
	EvtReprogram        = 3 // Hardware timer programmed
	EvtFire             = 4 // Entry detached and callback invoked
	EvtDelete           = 5 // Pending entry deleted
	EvtIdle             = 6 // Pass ended with nothing left to arm; Value = entries fired
)

const (
	TimingRingSize = 32 // Keep last 32 events per queue
)

// timingRing is a fixed-size event buffer. It is written with the queue
// lock held and never blocks.
type timingRing struct {
	events [TimingRingSize]TimingEvent
	head   uint8 // Next write position
}

func (r *timingRing) record(eventType uint8, clock, deadline Ticks, value uint64) {
	idx := r.head
	r.events[idx] = TimingEvent{
		EventType: eventType,
		Clock:     clock,
		Deadline:  deadline,
		Value:     value,
	}
	r.head = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events from oldest to newest.
func (q *Queue) TimingEvents() []TimingEvent {
	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)

	out := make([]TimingEvent, 0, TimingRingSize)
	start := q.ring.head
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := q.ring.events[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns the short name of an event type code.
func EventName(eventType uint8) string {
	switch eventType {
	case EvtArm:
		return "ARM"
	case EvtAlreadyScheduled:
		return "ALREADY"
	case EvtReprogram:
		return "REPROGRAM"
	case EvtFire:
		return "FIRE"
	case EvtDelete:
		return "DELETE"
	case EvtIdle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing writes the queue's timing events to its logger at info
// level. Call it on shutdown or after an error, not from a callback.
func (q *Queue) DumpTimingRing() {
	events := q.TimingEvents()
	q.log.Info().Int("events", len(events)).Msg("timing ring dump")
	for _, evt := range events {
		q.log.Info().
			Str("event", EventName(evt.EventType)).
			Uint64("clock", uint64(evt.Clock)).
			Uint64("deadline", uint64(evt.Deadline)).
			Uint64("value", evt.Value).
			Msg("timing")
	}
}

// ClearTimingRing clears the queue's timing buffer
func (q *Queue) ClearTimingRing() {
	state := q.lock.lockIRQSave()
	defer q.lock.unlockIRQRestore(state)
	q.ring = timingRing{}
}
