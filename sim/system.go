package sim

import (
	"github.com/rs/zerolog"

	"hvtimer/core"
	"hvtimer/softirq"
)

// System wires a Machine, a softirq framework and an initialized timer
// subsystem together.
type System struct {
	Machine *Machine
	IRQ     *softirq.Framework
	Timers  *core.Timers
}

// NewSystem builds and initializes a simulated system for cfg.
func NewSystem(cfg core.Config, log zerolog.Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	irq := softirq.New(cfg.CPUs, softirq.WithLogger(log.With().Str("component", "softirq").Logger()))
	m := NewMachine(cfg.CPUs, irq)

	t, err := core.New(cfg, m, m, irq, core.WithLogger(log.With().Str("component", "timer").Logger()))
	if err != nil {
		return nil, err
	}
	if err := t.Init(); err != nil {
		return nil, err
	}
	return &System{Machine: m, IRQ: irq, Timers: t}, nil
}
