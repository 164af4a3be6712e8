// Package memory provides an in-memory hardware gateway. It records every
// pin transition instead of toggling real GPIOs, which makes it the gateway
// for tests and for running the daemon on a development machine.
package memory

import (
	"log/slog"
	"sync"

	"sprinkler/internal/hardware"
	"sprinkler/internal/logging"
)

// Gateway implements hardware.Gateway in memory.
// Methods are safe for concurrent use.
type Gateway struct {
	mu       sync.Mutex
	asserted map[uint8]bool
	starts   map[uint8]int
	stops    map[uint8]int
	failing  map[uint8]bool
	logger   *slog.Logger
}

// New returns an empty gateway. All pins start deasserted.
func New(logger *slog.Logger) *Gateway {
	return &Gateway{
		asserted: make(map[uint8]bool),
		starts:   make(map[uint8]int),
		stops:    make(map[uint8]int),
		failing:  make(map[uint8]bool),
		logger:   logging.Default(logger).With("component", "hardware"),
	}
}

// FailGPIO marks a pin as broken: start and stop on it return ErrGPIO.
func (g *Gateway) FailGPIO(gpio uint8, fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failing[gpio] = fail
}

func (g *Gateway) StartRelay(gpio uint8) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failing[gpio] {
		return hardware.ErrGPIO
	}
	if g.asserted[gpio] {
		return nil
	}
	g.asserted[gpio] = true
	g.starts[gpio]++
	g.logger.Info("relay on", "gpio", gpio)
	return nil
}

func (g *Gateway) StopRelay(gpio uint8) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failing[gpio] {
		return hardware.ErrGPIO
	}
	if !g.asserted[gpio] {
		return nil
	}
	g.asserted[gpio] = false
	g.stops[gpio]++
	g.logger.Info("relay off", "gpio", gpio)
	return nil
}

// WaitMS returns immediately; the development gateway has nothing to wait on.
func (g *Gateway) WaitMS(ms uint32) error { return nil }

// WaitS returns immediately.
func (g *Gateway) WaitS(s uint32) error { return nil }

// Asserted reports whether the pin is currently asserted.
func (g *Gateway) Asserted(gpio uint8) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.asserted[gpio]
}

// Starts returns how many effective (non-idempotent) starts the pin has seen.
func (g *Gateway) Starts(gpio uint8) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.starts[gpio]
}

// Stops returns how many effective stops the pin has seen.
func (g *Gateway) Stops(gpio uint8) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stops[gpio]
}
