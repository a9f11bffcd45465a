// Package circuit implements a per-component circuit breaker used by
// pkg/recovery to stop hammering a backup target (the object store) once
// it starts failing consistently, and to probe it again after a cooldown.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	// StateClosed lets requests through normally.
	StateClosed State = iota
	// StateOpen rejects every request until Timeout elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe requests through to
	// test whether the backend has recovered.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Breaker.
type Config struct {
	// MaxRequests caps how many probe requests are allowed through while
	// half-open.
	MaxRequests uint32

	// Interval is how long the closed state runs before its failure
	// counts reset.
	Interval time.Duration

	// Timeout is how long the breaker stays open before trying a probe.
	Timeout time.Duration

	// ReadyToTrip decides whether the current counts should open the
	// breaker. Defaults to 20+ requests with a >=50% failure rate.
	ReadyToTrip func(counts Counts) bool

	// OnStateChange, if set, is called on every state transition.
	OnStateChange func(name string, from State, to State)

	// IsSuccessful decides whether an error counts as a failure. Defaults
	// to treating any non-nil error as a failure.
	IsSuccessful func(err error) bool
}

// Counts tracks request outcomes within the current window.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
	LastActivity         time.Time
}

func (c *Counts) onRequest() {
	c.Requests++
	c.LastActivity = time.Now()
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

// ErrOpenState is returned when a call is rejected because the breaker is
// open.
var ErrOpenState = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when the half-open probe quota is
// exhausted.
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Breaker is a circuit breaker guarding calls to a single named backend
// component (e.g. "objectstore").
type Breaker struct {
	name   string
	config Config

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// NewBreaker returns a Breaker for name, filling in Config zero values
// with defaults.
func NewBreaker(name string, config Config) *Breaker {
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.ReadyToTrip == nil {
		config.ReadyToTrip = defaultReadyToTrip
	}
	if config.IsSuccessful == nil {
		config.IsSuccessful = defaultIsSuccessful
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		expiry: time.Now().Add(config.Interval),
	}
}

func defaultReadyToTrip(counts Counts) bool {
	return counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

func defaultIsSuccessful(err error) bool {
	return err == nil
}

// ExecuteWithContext runs fn if the breaker currently allows it, recording
// the outcome against the breaker's counts either way.
func (b *Breaker) ExecuteWithContext(ctx context.Context, fn func(context.Context) error) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	b.afterRequest(err)
	return err
}

func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, _ := b.currentState(now)

	if state == StateOpen {
		return ErrOpenState
	}
	if state == StateHalfOpen && b.counts.Requests >= b.config.MaxRequests {
		return ErrTooManyRequests
	}

	b.counts.onRequest()
	return nil
}

func (b *Breaker) afterRequest(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, _ := b.currentState(now)

	if b.config.IsSuccessful(err) {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	b.counts.onSuccess()
	if state == StateHalfOpen {
		b.setState(StateClosed, now)
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	b.counts.onFailure()

	switch state {
	case StateClosed:
		if b.config.ReadyToTrip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

// currentState lazily advances the state machine: a closed window past
// its interval resets counts, an open breaker past its timeout goes
// half-open. Callers must hold b.mu.
func (b *Breaker) currentState(now time.Time) (State, time.Time) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.counts.clear()
			b.expiry = now.Add(b.config.Interval)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.expiry
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.counts.clear()

	switch state {
	case StateClosed:
		b.expiry = now.Add(b.config.Interval)
	case StateOpen:
		b.expiry = now.Add(b.config.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, state)
	}
}

// GetState returns the breaker's current state, advancing the state
// machine first if a window has expired.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(time.Now())
	return state
}

// GetCounts returns a copy of the breaker's counts in the current window.
func (b *Breaker) GetCounts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Reset forces the breaker back to closed with empty counts, used by
// pkg/recovery once a component's degradation period ends and a fresh
// attempt is warranted.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts.clear()
	b.setState(StateClosed, time.Now())
}

// BreakerStats is a point-in-time snapshot of one breaker, suitable for
// the RecoveryManager's status report.
type BreakerStats struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Counts Counts `json:"counts"`
}

// Registry holds one Breaker per component, created lazily with a shared
// Config on first use.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   Config
}

// NewRegistry returns an empty Registry that creates breakers with config
// on demand.
func NewRegistry(config Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   config,
	}
}

// GetBreaker returns the breaker for name, creating it if this is the
// first call for that component.
func (reg *Registry) GetBreaker(name string) *Breaker {
	reg.mu.RLock()
	if b, ok := reg.breakers[name]; ok {
		reg.mu.RUnlock()
		return b
	}
	reg.mu.RUnlock()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if b, ok := reg.breakers[name]; ok {
		return b
	}

	b := NewBreaker(name, reg.config)
	reg.breakers[name] = b
	return b
}

// GetStats returns a snapshot of every breaker the registry has created.
func (reg *Registry) GetStats() map[string]BreakerStats {
	reg.mu.RLock()
	breakers := make(map[string]*Breaker, len(reg.breakers))
	for name, b := range reg.breakers {
		breakers[name] = b
	}
	reg.mu.RUnlock()

	stats := make(map[string]BreakerStats, len(breakers))
	for name, b := range breakers {
		stats[name] = BreakerStats{Name: name, State: b.GetState(), Counts: b.GetCounts()}
	}
	return stats
}
