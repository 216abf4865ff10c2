package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/shlex"

	"hvtimer/config"
	"hvtimer/host/serial"
	"hvtimer/logx"
	"hvtimer/sim"
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	cpus       = flag.Int("cpus", 0, "Number of cores (overrides config)")
	margin     = flag.Int("margin", -1, "Fire-time margin in ticks (overrides config)")
	policy     = flag.String("policy", "", "Next-deadline policy: minimum or last_observed (overrides config)")
	uart       = flag.String("uart", "", "Serial device for JSON log output (overrides config)")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var sinks []io.Writer
	if cfg.Log.UART.Device != "" {
		sc := serial.DefaultConfig(cfg.Log.UART.Device)
		sc.Baud = cfg.Log.UART.Baud
		port, err := serial.Open(sc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer port.Close()
		sinks = append(sinks, port)
	}
	log := logx.New(cfg.Log, sinks...)

	tc, err := cfg.Timers()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sys, err := sim.NewSystem(tc, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("timersim - per-core timer queue simulator")
	fmt.Printf("cpus=%d margin=%d policy=%s\n\n", tc.CPUs, tc.Margin, tc.Policy)
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	console := NewConsole(sys, os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		if err := console.Exec(args); err != nil {
			if err == errQuit {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads -config (or the defaults) and applies the flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	if *cpus > 0 {
		cfg.CPUs = *cpus
	}
	if *margin >= 0 {
		m := uint64(*margin)
		cfg.Margin = &m
	}
	if *policy != "" {
		cfg.NextDeadline = *policy
	}
	if *uart != "" {
		cfg.Log.UART.Device = *uart
		if cfg.Log.UART.Baud == 0 {
			cfg.Log.UART.Baud = 115200
		}
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
