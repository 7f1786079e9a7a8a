// Package health tracks the state of the practice service components and
// reports whether reads and writes can still be served.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tutoapp/practicecache/pkg/errors"
)

// State represents the health state of a component
type State int

const (
	// StateHealthy indicates the component is fully operational
	StateHealthy State = iota

	// StateDegraded indicates the component serves requests from memory only
	StateDegraded

	// StateReadOnly indicates persisted data can be read but not written
	StateReadOnly

	// StateUnavailable indicates the component cannot serve requests
	StateUnavailable
)

// String returns the string representation of a health state
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateReadOnly:
		return "read-only"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ComponentHealth is a snapshot of one component
type ComponentHealth struct {
	Name              string    `json:"name"`
	State             State     `json:"state"`
	LastStateChange   time.Time `json:"last_state_change"`
	LastHealthCheck   time.Time `json:"last_health_check"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastErrorMessage  string    `json:"last_error_message,omitempty"`
}

// Config configures health tracking behavior
type Config struct {
	// ErrorThreshold is the number of consecutive errors before marking a component degraded
	ErrorThreshold int `yaml:"error_threshold"`

	// UnavailableThreshold is the number of consecutive errors before marking unavailable
	UnavailableThreshold int `yaml:"unavailable_threshold"`

	// CheckInterval is the interval for periodic health checks
	CheckInterval time.Duration `yaml:"check_interval"`
}

// DefaultConfig returns a default tracker configuration
func DefaultConfig() Config {
	return Config{
		ErrorThreshold:       3,
		UnavailableThreshold: 10,
		CheckInterval:        30 * time.Second,
	}
}

// StateChangeCallback is called when a component's health state changes
type StateChangeCallback func(component string, oldState, newState State, err error)

// CheckFunc probes one component. A nil error counts as a success.
type CheckFunc func(ctx context.Context, component string) error

// Tracker tracks the health of registered components. Overall health is
// the worst component state.
type Tracker struct {
	mu         sync.RWMutex
	components map[string]*ComponentHealth
	config     Config
	callbacks  map[State][]StateChangeCallback
	now        func() time.Time
}

// NewTracker creates a new health tracker
func NewTracker(config Config) *Tracker {
	def := DefaultConfig()
	if config.ErrorThreshold <= 0 {
		config.ErrorThreshold = def.ErrorThreshold
	}
	if config.UnavailableThreshold < config.ErrorThreshold {
		config.UnavailableThreshold = config.ErrorThreshold
	}
	return &Tracker{
		components: make(map[string]*ComponentHealth),
		config:     config,
		callbacks:  make(map[State][]StateChangeCallback),
		now:        time.Now,
	}
}

// RegisterComponent starts tracking name as healthy. Registering twice is a no-op.
func (t *Tracker) RegisterComponent(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.components[name]; !exists {
		now := t.now()
		t.components[name] = &ComponentHealth{
			Name:            name,
			State:           StateHealthy,
			LastStateChange: now,
			LastHealthCheck: now,
		}
	}
}

// RecordSuccess records a successful check. A component recovers once its
// error count has drained back to zero.
func (t *Tracker) RecordSuccess(component string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	health, exists := t.components[component]
	if !exists {
		return
	}

	oldState := health.State
	health.LastHealthCheck = t.now()

	if health.ConsecutiveErrors > 0 {
		health.ConsecutiveErrors--
		if health.ConsecutiveErrors == 0 && health.State != StateHealthy {
			t.transition(health, StateHealthy)
		}
	}

	if oldState != health.State {
		t.notify(component, oldState, health.State, nil)
	}
}

// RecordError records a failed check for a component
func (t *Tracker) RecordError(component string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	health, exists := t.components[component]
	if !exists {
		return
	}

	oldState := health.State
	health.LastHealthCheck = t.now()
	health.ConsecutiveErrors++
	if err != nil {
		health.LastErrorMessage = err.Error()
	}

	newState := health.State
	switch {
	case health.ConsecutiveErrors >= t.config.UnavailableThreshold:
		newState = StateUnavailable
	case health.ConsecutiveErrors >= t.config.ErrorThreshold:
		if isWriteError(err) {
			newState = StateReadOnly
		} else {
			newState = StateDegraded
		}
	}

	if newState != oldState {
		t.transition(health, newState)
		t.notify(component, oldState, newState, err)
	}
}

// State returns the current state of a component. Unknown components are unavailable.
func (t *Tracker) State(component string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if health, exists := t.components[component]; exists {
		return health.State
	}
	return StateUnavailable
}

// Component returns a snapshot of one component
func (t *Tracker) Component(component string) (ComponentHealth, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	health, exists := t.components[component]
	if !exists {
		return ComponentHealth{}, fmt.Errorf("component %s not registered", component)
	}
	return *health, nil
}

// Components returns snapshots of every component ordered by name
func (t *Tracker) Components() []ComponentHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]ComponentHealth, 0, len(t.components))
	for _, health := range t.components {
		result = append(result, *health)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Overall returns the worst state across all components
func (t *Tracker) Overall() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	overall := StateHealthy
	for _, health := range t.components {
		if health.State > overall {
			overall = health.State
		}
	}
	return overall
}

// CanRead reports whether the component can serve reads
func (t *Tracker) CanRead(component string) bool {
	return t.State(component) != StateUnavailable
}

// CanWrite reports whether the component accepts writes
func (t *Tracker) CanWrite(component string) bool {
	state := t.State(component)
	return state == StateHealthy || state == StateDegraded
}

// OnStateChange registers a callback run when a component enters state
func (t *Tracker) OnStateChange(state State, callback StateChangeCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callbacks[state] = append(t.callbacks[state], callback)
}

// Check runs check once against every registered component.
func (t *Tracker) Check(ctx context.Context, check CheckFunc) {
	t.mu.RLock()
	components := make([]string, 0, len(t.components))
	for name := range t.components {
		components = append(components, name)
	}
	t.mu.RUnlock()
	sort.Strings(components)

	for _, component := range components {
		if err := check(ctx, component); err != nil {
			t.RecordError(component, err)
		} else {
			t.RecordSuccess(component)
		}
	}
}

// Run checks every component at the configured interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, check CheckFunc) {
	if t.config.CheckInterval <= 0 {
		return
	}
	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Check(ctx, check)
		}
	}
}

// transition must be called with the lock held.
func (t *Tracker) transition(health *ComponentHealth, newState State) {
	health.State = newState
	health.LastStateChange = t.now()

	if newState == StateHealthy {
		health.ConsecutiveErrors = 0
		health.LastErrorMessage = ""
	}
}

// notify must be called with the lock held; callbacks run on their own goroutines.
func (t *Tracker) notify(component string, oldState, newState State, err error) {
	for _, callback := range t.callbacks[newState] {
		go callback(component, oldState, newState, err)
	}
}

// isWriteError reports failures that leave persisted data readable.
func isWriteError(err error) bool {
	return errors.HasCode(err, errors.ErrCodeStorageBlocked)
}
