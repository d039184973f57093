package worker

import (
	"context"
	"sync"
)

// Readiness resolves exactly once, either to nil (the worker intercepts
// every subsequent request) or to the registration failure. Any number of
// goroutines may wait on it.
type Readiness struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// resolve settles the readiness; later calls are ignored.
func (r *Readiness) resolve(err error) bool {
	resolved := false
	r.once.Do(func() {
		r.err = err
		close(r.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the readiness is settled.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}

// Err returns the outcome. It is nil until Done is closed.
func (r *Readiness) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Resolved reports whether the readiness has settled.
func (r *Readiness) Resolved() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the readiness settles or ctx ends. A ctx error does not
// settle the readiness.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
