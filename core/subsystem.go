package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"hvtimer/softirq"
)

// NextDeadlinePolicy selects how an expiry pass picks the deadline it
// programs into the hardware.
type NextDeadlinePolicy uint8

const (
	// NextDeadlineMinimum programs the earliest deadline among all entries
	// pending at the end of the pass.
	NextDeadlineMinimum NextDeadlinePolicy = iota

	// NextDeadlineLastObserved programs the deadline of the last pending or
	// re-armed entry the pass walked over, even if an earlier one was seen.
	// This can leave a sooner entry waiting for a later interrupt and exists
	// for behavioural compatibility with older kernels.
	NextDeadlineLastObserved
)

func (p NextDeadlinePolicy) String() string {
	switch p {
	case NextDeadlineMinimum:
		return "minimum"
	case NextDeadlineLastObserved:
		return "last_observed"
	default:
		return "unknown"
	}
}

// ParseNextDeadlinePolicy parses the names produced by String.
func ParseNextDeadlinePolicy(s string) (NextDeadlinePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minimum", "min":
		return NextDeadlineMinimum, nil
	case "last_observed", "last-observed", "legacy":
		return NextDeadlineLastObserved, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Config holds the subsystem parameters.
type Config struct {
	CPUs   int
	Margin Ticks
	Policy NextDeadlinePolicy
}

// DefaultConfig returns the configuration for cpus cores with the default
// margin and the minimum next-deadline policy.
func DefaultConfig(cpus int) Config {
	return Config{
		CPUs:   cpus,
		Margin: DefaultMargin,
		Policy: NextDeadlineMinimum,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.CPUs <= 0 {
		return fmt.Errorf("%w: cpu count %d", ErrInvalidCPU, c.CPUs)
	}
	// A re-armed entry is at least MinSlack ahead of the pass's now, so it
	// can never be due again within the same pass.
	if c.Margin >= MinSlack {
		return fmt.Errorf("%w: margin %d", ErrMarginTooLarge, c.Margin)
	}
	switch c.Policy {
	case NextDeadlineMinimum, NextDeadlineLastObserved:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPolicy, c.Policy)
	}
	return nil
}

// Option configures Timers.
type Option func(*Timers)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Timers) {
		t.log = l
	}
}

// Timers is the timer subsystem: one Queue per CPU plus the collaborators
// they share.
type Timers struct {
	clock Clock
	hw    HardwareTimer
	irq   SoftIRQ
	log   zerolog.Logger

	cpus   int
	margin Ticks
	policy NextDeadlinePolicy

	mu     sync.Mutex
	queues []*Queue
}

// New validates cfg and returns an uninitialized subsystem. Init must be
// called once before any entry is armed.
func New(cfg Config, clock Clock, hw HardwareTimer, irq SoftIRQ, opts ...Option) (*Timers, error) {
	if clock == nil || hw == nil || irq == nil {
		panic("timer: clock, hardware timer and softirq framework are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Timers{
		clock:  clock,
		hw:     hw,
		irq:    irq,
		log:    zerolog.Nop(),
		cpus:   cfg.CPUs,
		margin: cfg.Margin,
		policy: cfg.Policy,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Init builds an empty queue for every CPU and registers the expiry
// dispatcher at softirq.Timer.
func (t *Timers) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queues != nil {
		return ErrAlreadyInitialized
	}

	queues := make([]*Queue, t.cpus)
	for cpu := range queues {
		queues[cpu] = newQueue(t, cpu)
	}

	if err := t.irq.Open(softirq.Timer, t.RunSoftIRQ); err != nil {
		return fmt.Errorf("register timer softirq: %w", err)
	}
	t.queues = queues

	t.log.Info().
		Int("cpus", t.cpus).
		Uint64("margin", uint64(t.margin)).
		Stringer("policy", t.policy).
		Msg("timers initialized")
	return nil
}

// Queue returns the queue of cpu.
func (t *Timers) Queue(cpu int) (*Queue, error) {
	t.mu.Lock()
	queues := t.queues
	t.mu.Unlock()

	if queues == nil {
		return nil, ErrNotInitialized
	}
	if cpu < 0 || cpu >= len(queues) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCPU, cpu)
	}
	return queues[cpu], nil
}

// MustQueue returns the queue of cpu or panics.
func (t *Timers) MustQueue(cpu int) *Queue {
	q, err := t.Queue(cpu)
	if err != nil {
		panic(err)
	}
	return q
}

// CPUs returns the number of per-core queues.
func (t *Timers) CPUs() int { return t.cpus }

// RunSoftIRQ is the softirq.Timer handler: it runs one expiry pass on the
// queue of cpu.
func (t *Timers) RunSoftIRQ(cpu int) {
	q, err := t.Queue(cpu)
	if err != nil {
		t.log.Error().Err(err).Int("cpu", cpu).Msg("timer softirq on unknown queue")
		return
	}
	q.RunExpiryPass()
}
