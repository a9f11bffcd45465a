// Package recovery provides error recovery and graceful degradation for
// driftlock's object-store operations: retry, circuit breaking, and
// fallback, chosen per component and remembered across calls.
package recovery

import (
	"context"
	stderr "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/driftlock/driftlock/internal/circuit"
	"github.com/driftlock/driftlock/pkg/errors"
	"github.com/driftlock/driftlock/pkg/retry"
)

// RecoveryStrategy defines how to handle and recover from errors.
type RecoveryStrategy int

const (
	StrategyRetry RecoveryStrategy = iota
	StrategyCircuitBreaker
	StrategyGracefulDegradation
	StrategyFallback
	StrategyFailFast
)

func (s RecoveryStrategy) String() string {
	switch s {
	case StrategyRetry:
		return "retry"
	case StrategyCircuitBreaker:
		return "circuit_breaker"
	case StrategyGracefulDegradation:
		return "graceful_degradation"
	case StrategyFallback:
		return "fallback"
	case StrategyFailFast:
		return "fail_fast"
	default:
		return "unknown"
	}
}

// RecoveryConfig configures recovery behavior.
type RecoveryConfig struct {
	DefaultStrategy      RecoveryStrategy
	RetryConfig          retry.Config
	CircuitBreakerConfig circuit.Config
	EnableAutoRecovery   bool
	MaxRecoveryAttempts  int
	RecoveryBackoff      time.Duration
	Logger               *slog.Logger
}

// DefaultRecoveryConfig returns sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		DefaultStrategy:     StrategyRetry,
		RetryConfig:         retry.DefaultConfig(),
		EnableAutoRecovery:  true,
		MaxRecoveryAttempts: 3,
		RecoveryBackoff:     5 * time.Second,
		CircuitBreakerConfig: circuit.Config{
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
		},
	}
}

// RecoveryManager manages error recovery and graceful degradation.
type RecoveryManager struct {
	config   RecoveryConfig
	retryer  *retry.Retryer
	breakers *circuit.Registry
	logger   *slog.Logger

	mu                 sync.RWMutex
	recoveryAttempts   map[string]int
	degradedComponents map[string]*DegradedState
	fallbackFunctions  map[string]FallbackFunc
}

// DegradedState tracks degraded component state.
type DegradedState struct {
	Component     string
	Reason        string
	Since         time.Time
	AttemptCount  int
	LastAttempt   time.Time
	NextAttempt   time.Time
	OriginalError *errors.DriftlockError
}

// FallbackFunc is a fallback function for an operation.
type FallbackFunc func(ctx context.Context) (interface{}, error)

// NewRecoveryManager creates a new recovery manager.
func NewRecoveryManager(config RecoveryConfig) *RecoveryManager {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &RecoveryManager{
		config:             config,
		retryer:            retry.New(config.RetryConfig),
		breakers:           circuit.NewRegistry(config.CircuitBreakerConfig),
		logger:             config.Logger,
		recoveryAttempts:   make(map[string]int),
		degradedComponents: make(map[string]*DegradedState),
		fallbackFunctions:  make(map[string]FallbackFunc),
	}
}

// Execute executes an operation with automatic error recovery.
func (rm *RecoveryManager) Execute(ctx context.Context, component string, operation string, fn func() error) error {
	_, err := rm.ExecuteWithResult(ctx, component, operation, func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// ExecuteWithResult executes an operation and returns its result with recovery.
func (rm *RecoveryManager) ExecuteWithResult(ctx context.Context, component string, operation string, fn func() (interface{}, error)) (interface{}, error) {
	opKey := fmt.Sprintf("%s:%s", component, operation)

	if rm.isComponentDegraded(component) {
		if fallback := rm.getFallback(opKey); fallback != nil {
			rm.logger.Info("using fallback for degraded component", "component", component, "operation", operation)
			return fallback(ctx)
		}
		return nil, errors.New(errors.CodeObjectStoreTransient,
			fmt.Sprintf("component %s is in degraded state", component)).
			WithComponent(component).
			WithOperation(operation)
	}

	switch rm.determineStrategy(component, operation) {
	case StrategyRetry:
		return rm.executeWithRetry(ctx, component, operation, fn)
	case StrategyCircuitBreaker:
		return rm.executeWithCircuitBreaker(ctx, component, operation, fn)
	case StrategyGracefulDegradation:
		return rm.executeWithDegradation(ctx, component, operation, fn)
	case StrategyFallback:
		return rm.executeWithFallback(ctx, component, operation, fn)
	default:
		return fn()
	}
}

func (rm *RecoveryManager) executeWithRetry(ctx context.Context, component string, operation string, fn func() (interface{}, error)) (interface{}, error) {
	var result interface{}

	err := rm.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn()
		return err
	})

	if err != nil {
		rm.handleFailure(component, operation, err)
		return nil, rm.enhanceError(err, component, operation, "retry exhausted")
	}

	rm.handleSuccess(component)
	return result, nil
}

func (rm *RecoveryManager) executeWithCircuitBreaker(ctx context.Context, component string, operation string, fn func() (interface{}, error)) (interface{}, error) {
	breaker := rm.breakers.GetBreaker(component)

	var result interface{}
	var fnErr error

	err := breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn()
		fnErr = err
		return err
	})

	if err != nil {
		if stderr.Is(err, circuit.ErrOpenState) {
			rm.markDegraded(component, operation, fmt.Errorf("circuit breaker open"))
			rm.logger.Warn("circuit breaker open", "component", component, "operation", operation)
			return nil, errors.New(errors.CodeObjectStoreTransient,
				"service temporarily unavailable due to repeated failures").
				WithComponent(component).
				WithOperation(operation).
				WithCause(err)
		}
		rm.handleFailure(component, operation, err)
		return nil, rm.enhanceError(fnErr, component, operation, "circuit breaker triggered")
	}

	rm.handleSuccess(component)
	return result, nil
}

func (rm *RecoveryManager) executeWithDegradation(ctx context.Context, component string, operation string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := fn()
	if err != nil {
		rm.markDegraded(component, operation, err)

		opKey := fmt.Sprintf("%s:%s", component, operation)
		if fallback := rm.getFallback(opKey); fallback != nil {
			rm.logger.Info("using fallback due to error", "component", component, "operation", operation, "error", err)
			return fallback(ctx)
		}

		return nil, rm.enhanceError(err, component, operation, "operating in degraded mode")
	}

	rm.handleSuccess(component)
	return result, nil
}

func (rm *RecoveryManager) executeWithFallback(ctx context.Context, component string, operation string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := fn()
	if err != nil {
		opKey := fmt.Sprintf("%s:%s", component, operation)
		if fallback := rm.getFallback(opKey); fallback != nil {
			rm.logger.Info("primary operation failed, using fallback", "component", component, "operation", operation)
			return fallback(ctx)
		}
		return nil, rm.enhanceError(err, component, operation, "no fallback available")
	}
	return result, nil
}

// RegisterFallback registers a fallback function for an operation.
func (rm *RecoveryManager) RegisterFallback(component string, operation string, fallback FallbackFunc) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.fallbackFunctions[fmt.Sprintf("%s:%s", component, operation)] = fallback
}

func (rm *RecoveryManager) getFallback(opKey string) FallbackFunc {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.fallbackFunctions[opKey]
}

func (rm *RecoveryManager) markDegraded(component string, operation string, err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	state := rm.degradedComponents[component]
	if state == nil {
		state = &DegradedState{Component: component, Since: time.Now()}
		rm.degradedComponents[component] = state
	}

	state.Reason = fmt.Sprintf("%s: %v", operation, err)
	state.AttemptCount++
	state.LastAttempt = time.Now()
	state.NextAttempt = time.Now().Add(rm.config.RecoveryBackoff)

	var de *errors.DriftlockError
	if stderr.As(err, &de) {
		state.OriginalError = de
	}

	rm.logger.Warn("component marked as degraded", "component", component, "reason", state.Reason, "attempts", state.AttemptCount)

	if rm.config.EnableAutoRecovery && state.AttemptCount <= rm.config.MaxRecoveryAttempts {
		go rm.attemptAutoRecovery(component)
	}
}

func (rm *RecoveryManager) isComponentDegraded(component string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.degradedComponents[component] != nil
}

func (rm *RecoveryManager) attemptAutoRecovery(component string) {
	rm.mu.RLock()
	state := rm.degradedComponents[component]
	if state == nil {
		rm.mu.RUnlock()
		return
	}
	nextAttempt := state.NextAttempt
	rm.mu.RUnlock()

	time.Sleep(time.Until(nextAttempt))

	rm.logger.Info("attempting automatic recovery", "component", component, "attempt", state.AttemptCount+1)

	rm.breakers.GetBreaker(component).Reset()

	rm.mu.Lock()
	delete(rm.degradedComponents, component)
	rm.mu.Unlock()

	rm.logger.Info("component recovered", "component", component)
}

// RecoverComponent manually recovers a degraded component.
func (rm *RecoveryManager) RecoverComponent(component string) error {
	rm.mu.Lock()
	state := rm.degradedComponents[component]
	if state == nil {
		rm.mu.Unlock()
		return errors.New(errors.CodeInternal, "component not in degraded state").WithComponent(component)
	}
	delete(rm.degradedComponents, component)
	rm.mu.Unlock()

	rm.breakers.GetBreaker(component).Reset()
	rm.logger.Info("component manually recovered", "component", component)

	return nil
}

// GetDegradedComponents returns all degraded components.
func (rm *RecoveryManager) GetDegradedComponents() map[string]*DegradedState {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	result := make(map[string]*DegradedState, len(rm.degradedComponents))
	for k, v := range rm.degradedComponents {
		stateCopy := *v
		result[k] = &stateCopy
	}
	return result
}

// GetCircuitBreakerStats returns circuit breaker statistics.
func (rm *RecoveryManager) GetCircuitBreakerStats() map[string]circuit.BreakerStats {
	return rm.breakers.GetStats()
}

func (rm *RecoveryManager) determineStrategy(component string, operation string) RecoveryStrategy {
	rm.mu.RLock()
	attemptCount := rm.recoveryAttempts[component]
	rm.mu.RUnlock()

	if attemptCount >= 3 {
		return StrategyCircuitBreaker
	}

	if component == "objectstore" {
		return StrategyRetry
	}

	return rm.config.DefaultStrategy
}

func (rm *RecoveryManager) handleSuccess(component string) {
	rm.mu.Lock()
	delete(rm.recoveryAttempts, component)
	rm.mu.Unlock()
}

func (rm *RecoveryManager) handleFailure(component string, operation string, err error) {
	rm.mu.Lock()
	rm.recoveryAttempts[component]++
	attempts := rm.recoveryAttempts[component]
	rm.mu.Unlock()

	rm.logger.Error("operation failed", "component", component, "operation", operation, "attempts", attempts, "error", err)
}

func (rm *RecoveryManager) enhanceError(err error, component string, operation string, context string) error {
	var de *errors.DriftlockError
	if stderr.As(err, &de) {
		return de.WithComponent(component).WithOperation(operation).WithContext("recovery_context", context)
	}

	return errors.New(errors.CodeInternal, err.Error()).
		WithComponent(component).
		WithOperation(operation).
		WithCause(err).
		WithContext("recovery_context", context)
}

// GetRecoveryStats returns recovery statistics.
func (rm *RecoveryManager) GetRecoveryStats() RecoveryStats {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return RecoveryStats{
		DegradedComponents: len(rm.degradedComponents),
		ActiveRecoveries:   rm.countActiveRecoveries(),
		CircuitBreakers:    rm.breakers.GetStats(),
		TotalAttempts:      rm.sumRecoveryAttempts(),
	}
}

// RecoveryStats provides recovery statistics.
type RecoveryStats struct {
	DegradedComponents int                                     `json:"degraded_components"`
	ActiveRecoveries   int                                     `json:"active_recoveries"`
	CircuitBreakers    map[string]circuit.BreakerStats `json:"circuit_breakers"`
	TotalAttempts      int                                     `json:"total_attempts"`
}

func (rm *RecoveryManager) countActiveRecoveries() int {
	count := 0
	for _, state := range rm.degradedComponents {
		if state.NextAttempt.After(time.Now()) {
			count++
		}
	}
	return count
}

func (rm *RecoveryManager) sumRecoveryAttempts() int {
	total := 0
	for _, count := range rm.recoveryAttempts {
		total += count
	}
	return total
}

// Shutdown gracefully shuts down the recovery manager.
func (rm *RecoveryManager) Shutdown(ctx context.Context) error {
	rm.logger.Info("recovery manager shutting down")
	return nil
}
