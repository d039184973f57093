package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jktrn/MemoLanes/pkg/logger"
	"github.com/jktrn/MemoLanes/pkg/metrics"
)

var (
	ErrRegistrationFailed = errors.New("worker registration failed")
	ErrActivationFailed   = errors.New("worker activation not confirmed")
	ErrRegistering        = errors.New("worker registration in progress")
)

// Registrar installs the interception worker. Register makes it reachable;
// Confirm returns nil only once the worker demonstrably answers intercepted
// requests. Unregister undoes Register.
type Registrar interface {
	Register(ctx context.Context) error
	Confirm(ctx context.Context) error
	Unregister(ctx context.Context) error
}

type Manager struct {
	registrar         Registrar
	activationTimeout time.Duration
	logger            logger.Logger

	// state is read on every intercepted request, so it is atomic; mu
	// serializes transitions.
	state     atomic.Int32
	mu        sync.Mutex
	readiness *Readiness
}

func NewManager(r Registrar, activationTimeout time.Duration, l logger.Logger) *Manager {
	m := &Manager{
		registrar:         r,
		activationTimeout: activationTimeout,
		logger:            l,
	}
	m.setState(Unregistered)
	return m
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// Active reports whether interception is live.
func (m *Manager) Active() bool {
	return m.State() == Active
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	metrics.WorkerState.Set(float64(s))
}

// Initialize starts registering the worker and returns its readiness. While
// a registration is in flight, or once the worker is active, it returns the
// existing readiness instead of registering again. After a failure it starts
// a fresh attempt.
//
// The registration runs detached from ctx so that every holder of the
// readiness observes the same outcome; it is bounded by the activation
// timeout instead.
func (m *Manager) Initialize(ctx context.Context) *Readiness {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.State() {
	case Registering:
		m.logger.Debug("worker registration already in flight")
		return m.readiness
	case Active:
		m.logger.Warn("worker initialize called multiple times")
		return m.readiness
	case Failed:
		m.logger.Info("retrying worker registration")
	}

	r := newReadiness()
	m.readiness = r
	m.setState(Registering)
	m.logger.Info("registering worker")

	go m.register(context.WithoutCancel(ctx), r)

	return r
}

func (m *Manager) register(ctx context.Context, r *Readiness) {
	ctx, cancel := context.WithTimeout(ctx, m.activationTimeout)
	defer cancel()

	start := time.Now()

	if err := m.registrar.Register(ctx); err != nil {
		m.fail(r, fmt.Errorf("%w: %w", ErrRegistrationFailed, err))
		return
	}

	if err := m.registrar.Confirm(ctx); err != nil {
		if uerr := m.registrar.Unregister(context.WithoutCancel(ctx)); uerr != nil {
			m.logger.Warn("failed to unregister unconfirmed worker", "error", uerr)
		}
		m.fail(r, fmt.Errorf("%w: %w", ErrActivationFailed, err))
		return
	}

	// Active is published before the readiness resolves, so a request
	// issued by a waiter right after Done is closed is intercepted.
	m.mu.Lock()
	if m.readiness == r {
		m.setState(Active)
	}
	m.mu.Unlock()
	r.resolve(nil)

	m.logger.Info("worker active", "duration", time.Since(start))
}

func (m *Manager) fail(r *Readiness, err error) {
	m.mu.Lock()
	if m.readiness == r {
		m.setState(Failed)
	}
	m.mu.Unlock()
	r.resolve(err)

	m.logger.Error("worker registration failed", "error", err)
}

// Teardown unregisters an active or failed worker and returns the manager to
// Unregistered. It refuses while a registration is in flight.
func (m *Manager) Teardown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.State() {
	case Unregistered:
		return nil
	case Registering:
		return ErrRegistering
	}

	// Leave the interception path before the server goes away.
	m.setState(Unregistered)
	m.readiness = nil

	if err := m.registrar.Unregister(ctx); err != nil {
		return fmt.Errorf("unregister worker: %w", err)
	}

	m.logger.Info("worker unregistered")
	return nil
}
