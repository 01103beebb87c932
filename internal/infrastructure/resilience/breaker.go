package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is rejected without being attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior.
type Settings struct {
	// MaxRequests is the number of probe requests allowed in half-open state.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state to clear counts.
	Interval time.Duration
	// Timeout is the period of the open state before probing again.
	Timeout time.Duration
	// ReadyToTrip is consulted after a failure in the closed state.
	ReadyToTrip func(counts Counts) bool
	// OnStateChange is called whenever the state changes.
	OnStateChange func(name string, from State, to State)
}

// Counts holds the rolling statistics for the breaker.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) onRequest() {
	c.Requests++
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

func (c *Counts) clear() {
	*c = Counts{}
}

// Breaker implements the circuit breaker pattern around a named dependency.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	expiry   time.Time
	halfOpen uint32
}

// New creates a circuit breaker with the given settings.
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = 60 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 60 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
	b.resetCycle(time.Now())
	return b
}

// Name returns the breaker's dependency name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(time.Now())
	return b.state
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}
	err := fn()
	b.afterRequest(err == nil)
	return err
}

func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)

	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpen >= b.settings.MaxRequests {
			return ErrCircuitOpen
		}
		b.halfOpen++
	}
	b.counts.onRequest()
	return nil
}

func (b *Breaker) afterRequest(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)

	if success {
		b.counts.onSuccess()
		if b.state == StateHalfOpen {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.onFailure()
	switch b.state {
	case StateClosed:
		if b.settings.ReadyToTrip(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

// advance moves the breaker through time-based transitions. Caller holds mu.
func (b *Breaker) advance(now time.Time) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && now.After(b.expiry) {
			b.resetCycle(now)
		}
	case StateOpen:
		if now.After(b.expiry) {
			b.transition(StateHalfOpen, now)
		}
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.counts.clear()
	b.halfOpen = 0

	switch to {
	case StateClosed:
		b.resetCycle(now)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) resetCycle(now time.Time) {
	b.counts.clear()
	b.expiry = now.Add(b.settings.Interval)
}
