// Package serial opens the UART used as a debug log sink.
package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.WriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the debug UART
	Baud int

	// Write timeout in milliseconds (0 = blocking)
	WriteTimeout int
}

// DefaultConfig returns a default configuration for a debug console UART
func DefaultConfig(device string) *Config {
	return &Config{
		Device:       device,
		Baud:         115200, // Standard console baud rate
		WriteTimeout: 100,    // 100ms write timeout
	}
}
