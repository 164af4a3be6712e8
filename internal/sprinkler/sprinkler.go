// Package sprinkler implements an irrigation controller: a tick-driven
// scheduling engine that advances up to 32 queues over a shared pool of up
// to 32 valve relays and 5 supply pumps, according to a persisted calendar
// and queue configuration.
//
// The host owns the main loop. It constructs a Sprinkler with a hardware
// gateway, a persistence store and a clock, then calls Tick repeatedly from
// a single context. Tick never blocks and never sleeps; all deadlines are
// absolute monotonic seconds compared with wrap-safe signed subtraction, so
// the 32-bit clock may roll over without malfunction.
//
// All state — persisted configuration and volatile runtime — lives in the
// Sprinkler value. There is no package-level state; independent controller
// instances do not interfere.
package sprinkler

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sprinkler/internal/hardware"
	"sprinkler/internal/logging"
)

const (
	NumSchedules = 32 // calendar schedule slots
	NumQueues    = 32
	NumRelays    = 32
	NumPumps     = 5
	NumMonths    = 12
	HoursPerDay  = 24

	// NoPump is the relay pump-id meaning "no pump required". The field is
	// 3 bits wide; any value >= NumPumps disables pump staging for the relay.
	NoPump = 5

	// PauseTableQueue is the reserved override row holding per-relay pause
	// seconds. It is never consulted for member durations.
	PauseTableQueue = 31

	// PersistInterval is the minimum number of seconds between tick-path
	// persistence attempts while the configuration is dirty.
	PersistInterval = 15

	closeRetries = 3
)

// Error kinds surfaced by the controller. Setters return ErrInvalidParam for
// out-of-range identifiers and ErrOutOfRange for values exceeding a field's
// width, always without mutating. Hardware errors are swallowed inside the
// tick; the tick's own error is reserved for clock failure.
var (
	ErrInvalidParam = errors.New("invalid parameter")
	ErrOutOfRange   = errors.New("value out of range")
	ErrBusy         = errors.New("resource busy")
	ErrHardware     = errors.New("hardware failure")
	ErrStorage      = errors.New("storage failure")
	ErrFailed       = errors.New("operation failed")
)

// Clock supplies the wall-clock sampled once per tick. Local broken-down
// fields drive the calendar matcher; the Unix seconds, truncated to uint32,
// drive all deadlines.
type Clock interface {
	Now() (time.Time, error)
}

type systemClock struct{}

func (systemClock) Now() (time.Time, error) { return time.Now(), nil }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Store persists the configuration. The controller loads once at
// construction, saves periodically from the tick while dirty, and retries
// the final save at Close.
type Store interface {
	// Load reads the persisted configuration into cfg.
	Load(cfg *Config) error

	// Save persists cfg.
	Save(cfg *Config) error
}

// Sprinkler is the controller aggregate: configuration, runtime state and
// the external gateways. It is not safe for concurrent use; the host
// serializes all calls.
type Sprinkler struct {
	cfg   Config
	dirty bool

	// Runtime state, zeroed at construction.
	queueRunning uint32
	relayRunning uint32
	paused       [NumQueues]bool
	currentIdx   [NumQueues]uint8
	pauseEnd     [NumQueues]uint32
	repeatCount  [NumQueues]uint8
	relayEnd     [NumQueues][NumRelays]uint32
	activePumps  uint8
	pumpStart    [NumPumps]uint32
	lastMinute   int16
	lastPersist  uint32

	gw     hardware.Gateway
	store  Store
	clock  Clock
	logger *slog.Logger
}

// New constructs a controller, loading the persisted configuration from st.
// A load failure is not fatal: the configuration starts zeroed (everything
// disabled) and the failure is logged. A nil clk selects the system clock; a
// nil logger discards.
func New(gw hardware.Gateway, st Store, clk Clock, logger *slog.Logger) *Sprinkler {
	if clk == nil {
		clk = systemClock{}
	}
	s := &Sprinkler{
		gw:         gw,
		store:      st,
		clock:      clk,
		logger:     logging.Default(logger).With("component", "sprinkler"),
		lastMinute: -1,
	}
	if err := st.Load(&s.cfg); err != nil {
		s.logger.Warn("config load failed, starting zeroed", "error", err)
		s.cfg = Config{}
	}
	return s
}

// Close flushes a dirty configuration, retrying the save a few times before
// giving up. It does not touch hardware; the host decides whether a final
// idle tick should run first.
func (s *Sprinkler) Close() error {
	if !s.dirty {
		return nil
	}
	var err error
	for attempt := 1; attempt <= closeRetries; attempt++ {
		if err = s.store.Save(&s.cfg); err == nil {
			s.dirty = false
			return nil
		}
		s.logger.Warn("final persist failed", "attempt", attempt, "error", err)
	}
	return fmt.Errorf("%w: persist config: %w", ErrStorage, err)
}

// Reload replaces the configuration with the store's current contents and
// clears the dirty flag. Hosts call this when the blob changes underneath a
// clean controller; runtime state is untouched.
func (s *Sprinkler) Reload() error {
	var cfg Config
	if err := s.store.Load(&cfg); err != nil {
		return fmt.Errorf("%w: reload config: %w", ErrStorage, err)
	}
	s.cfg = cfg
	s.dirty = false
	s.logger.Info("configuration reloaded")
	return nil
}

// ResetConfig discards the entire configuration, leaving everything
// disabled, and marks it dirty so the wipe persists. Hosts use this for a
// factory reset or as the first step of a full configuration import.
func (s *Sprinkler) ResetConfig() {
	s.cfg = Config{}
	s.dirty = true
}

// RunningQueues returns the bit-set of queues currently executing.
func (s *Sprinkler) RunningQueues() uint32 { return s.queueRunning }

// RunningRelays returns the bit-set of relays currently asserted, whether as
// queue members or as pump actuators.
func (s *Sprinkler) RunningRelays() uint32 { return s.relayRunning }

// ActivePumps returns the bit-set of pumps currently on.
func (s *Sprinkler) ActivePumps() uint8 { return s.activePumps }

// Dirty reports whether the configuration has unsaved changes.
func (s *Sprinkler) Dirty() bool { return s.dirty }

// Snapshot returns a copy of the persisted configuration.
func (s *Sprinkler) Snapshot() Config { return s.cfg }
