package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"hvtimer/core"
	"hvtimer/sim"
)

var errQuit = errors.New("quit")

// namedTimer is a timer created from the console.
type namedTimer struct {
	name   string
	cpu    int
	period core.Ticks // 0 = one-shot
	entry  *core.Entry
	fired  atomic.Uint64
}

// Console executes REPL commands against a simulated system.
type Console struct {
	sys    *sim.System
	out    io.Writer
	timers map[string]*namedTimer
}

// NewConsole returns a console writing command output to out.
func NewConsole(sys *sim.System, out io.Writer) *Console {
	return &Console{
		sys:    sys,
		out:    out,
		timers: make(map[string]*namedTimer),
	}
}

// Exec runs one command. It returns errQuit for quit/exit.
func (c *Console) Exec(args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		c.printHelp()
		return nil
	case "arm":
		return c.arm(args)
	case "add":
		return c.add(args)
	case "del", "delete":
		return c.del(args)
	case "advance", "adv":
		return c.advance(args)
	case "now":
		fmt.Fprintf(c.out, "now=%d\n", c.sys.Machine.Now())
		return nil
	case "status", "st":
		c.status()
		return nil
	case "dump":
		return c.dump(args)
	case "stress":
		return c.stress(args)
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "\nAvailable commands:")
	fmt.Fprintln(c.out, "  arm <cpu> <name> <delay> [period]  - Modify a named timer (periodic if period > 0)")
	fmt.Fprintln(c.out, "  add <cpu> <name> <delay>           - Add a named timer (fails if pending)")
	fmt.Fprintln(c.out, "  del <name>                         - Delete a named timer")
	fmt.Fprintln(c.out, "  advance <ticks>                    - Advance the clock and deliver interrupts")
	fmt.Fprintln(c.out, "  now                                - Print the clock")
	fmt.Fprintln(c.out, "  status                             - Print queues and named timers")
	fmt.Fprintln(c.out, "  dump <cpu>                         - Log the timing ring of a cpu")
	fmt.Fprintln(c.out, "  stress <ops>                       - Concurrent arm/delete on every cpu")
	fmt.Fprintln(c.out, "  quit/exit/q                        - Exit the program")
	fmt.Fprintln(c.out)
}

// lookup returns the named timer, creating it on cpu if it does not exist.
func (c *Console) lookup(name string, cpu int) (*namedTimer, error) {
	if nt, ok := c.timers[name]; ok {
		if nt.cpu != cpu {
			return nil, fmt.Errorf("timer %s lives on cpu %d", name, nt.cpu)
		}
		return nt, nil
	}
	nt := &namedTimer{name: name, cpu: cpu}
	nt.entry = core.NewEntry(core.CallbackFunc(func(e *core.Entry) {
		nt.fired.Add(1)
		fmt.Fprintf(c.out, "[cpu%d] %s fired at %d\n", nt.cpu, nt.name, c.sys.Machine.Now())
		if nt.period > 0 {
			_, _ = e.Queue().Modify(e, nt.period)
		}
	}))
	c.timers[name] = nt
	return nt, nil
}

func (c *Console) arm(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: arm <cpu> <name> <delay> [period]")
	}
	cpu, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid cpu %q: %w", args[0], err)
	}
	delay, err := parseTicks(args[2])
	if err != nil {
		return err
	}
	var period core.Ticks
	if len(args) > 3 {
		if period, err = parseTicks(args[3]); err != nil {
			return err
		}
	}

	q, err := c.sys.Timers.Queue(cpu)
	if err != nil {
		return err
	}
	nt, err := c.lookup(args[1], cpu)
	if err != nil {
		return err
	}
	nt.period = period

	status, err := q.Modify(nt.entry, delay)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: %s deadline=%d\n", nt.name, status, nt.entry.Expires())
	return nil
}

func (c *Console) add(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: add <cpu> <name> <delay>")
	}
	cpu, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid cpu %q: %w", args[0], err)
	}
	delay, err := parseTicks(args[2])
	if err != nil {
		return err
	}

	q, err := c.sys.Timers.Queue(cpu)
	if err != nil {
		return err
	}
	nt, err := c.lookup(args[1], cpu)
	if err != nil {
		return err
	}

	nt.entry.SetExpires(delay)
	if err := q.Add(nt.entry); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: added deadline=%d\n", nt.name, nt.entry.Expires())
	return nil
}

func (c *Console) del(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: del <name>")
	}
	nt, ok := c.timers[args[0]]
	if !ok {
		return fmt.Errorf("no timer named %s", args[0])
	}
	if err := nt.entry.Delete(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: deleted\n", nt.name)
	return nil
}

func (c *Console) advance(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: advance <ticks>")
	}
	d, err := parseTicks(args[0])
	if err != nil {
		return err
	}
	c.sys.Machine.Advance(d)
	fmt.Fprintf(c.out, "now=%d\n", c.sys.Machine.Now())
	return nil
}

func (c *Console) status() {
	m := c.sys.Machine
	fmt.Fprintf(c.out, "now=%d\n", m.Now())
	for cpu := 0; cpu < c.sys.Timers.CPUs(); cpu++ {
		q := c.sys.Timers.MustQueue(cpu)
		armed, ok := q.Armed()
		cmp, cmpOK := m.Comparator(cpu)
		fmt.Fprintf(c.out, "cpu%d: pending=%d armed=%s comparator=%s programs=%d interrupts=%d\n",
			cpu, q.Len(), fmtDeadline(armed, ok), fmtDeadline(cmp, cmpOK), m.Programs(cpu), m.Interrupts(cpu))
	}

	names := make([]string, 0, len(c.timers))
	for name := range c.timers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		nt := c.timers[name]
		fmt.Fprintf(c.out, "  %-12s cpu=%d pending=%-5t expires=%d period=%d fired=%d\n",
			nt.name, nt.cpu, nt.entry.Pending(), nt.entry.Expires(), nt.period, nt.fired.Load())
	}
}

func (c *Console) dump(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: dump <cpu>")
	}
	cpu, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid cpu %q: %w", args[0], err)
	}
	q, err := c.sys.Timers.Queue(cpu)
	if err != nil {
		return err
	}
	for _, evt := range q.TimingEvents() {
		fmt.Fprintf(c.out, "%-10s clock=%d deadline=%d value=%d\n",
			core.EventName(evt.EventType), evt.Clock, evt.Deadline, evt.Value)
	}
	q.DumpTimingRing()
	return nil
}

// stress runs one arm/delete worker per cpu against a ticker goroutine that
// keeps advancing the clock, then drains every queue.
func (c *Console) stress(args []string) error {
	ops := 1000
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid op count %q", args[0])
		}
		ops = n
	}

	const entriesPerCPU = 16
	var fired atomic.Uint64
	ncpu := c.sys.Timers.CPUs()
	m := c.sys.Machine

	entries := make([][]*core.Entry, ncpu)
	for cpu := range entries {
		entries[cpu] = make([]*core.Entry, entriesPerCPU)
		for i := range entries[cpu] {
			entries[cpu][i] = core.NewEntry(core.CallbackFunc(func(*core.Entry) {
				fired.Add(1)
			}))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers, wctx := errgroup.WithContext(ctx)
	for cpu := 0; cpu < ncpu; cpu++ {
		q := c.sys.Timers.MustQueue(cpu)
		own := entries[cpu]
		workers.Go(func() error {
			for i := 0; i < ops; i++ {
				if wctx.Err() != nil {
					return wctx.Err()
				}
				e := own[rand.IntN(len(own))]
				if rand.IntN(4) == 0 {
					if err := e.Delete(); err != nil {
						return err
					}
					continue
				}
				if _, err := q.Modify(e, core.Ticks(rand.IntN(1024))); err != nil {
					return err
				}
			}
			return nil
		})
	}

	ticker, tctx := errgroup.WithContext(ctx)
	ticker.Go(func() error {
		for tctx.Err() == nil {
			m.Advance(core.Ticks(1 + rand.IntN(64)))
		}
		return nil
	})

	err := workers.Wait()
	cancel()
	_ = ticker.Wait()
	if err != nil {
		return err
	}

	// Every remaining entry is at most MinSlack+1024 ticks out.
	for i := 0; i < 64 && c.pendingTotal() > 0; i++ {
		m.Advance(core.MinSlack)
	}

	fmt.Fprintf(c.out, "stress: cpus=%d ops=%d fired=%d left=%d now=%d\n",
		ncpu, ops, fired.Load(), c.pendingTotal(), m.Now())
	return nil
}

func (c *Console) pendingTotal() int {
	total := 0
	for cpu := 0; cpu < c.sys.Timers.CPUs(); cpu++ {
		total += c.sys.Timers.MustQueue(cpu).Len()
	}
	return total
}

func parseTicks(s string) (core.Ticks, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tick count %q: %w", s, err)
	}
	return core.Ticks(v), nil
}

func fmtDeadline(d core.Ticks, ok bool) string {
	if !ok {
		return "none"
	}
	return strconv.FormatUint(uint64(d), 10)
}
