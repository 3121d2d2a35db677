package interp

import (
	"context"
	"sync"

	"github.com/caffeineduck/pyparser/hostfunc"
)

// Runtime owns one guest interpreter and the lock that serializes all
// access to it.
type Runtime struct {
	backend Backend
	funcs   *hostfunc.Registry

	// sem has capacity one; holding its slot is holding the guard.
	sem  chan struct{}
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewWithBackend wraps an already running backend. Base host functions
// (guest logging) are registered for every request.
func NewWithBackend(b Backend) *Runtime {
	funcs := hostfunc.NewRegistry()
	funcs.Register(hostfunc.FuncLog, hostfunc.NewLog(Logger().Named("guest")))
	return newRuntime(b, funcs)
}

func newRuntime(b Backend, funcs *hostfunc.Registry) *Runtime {
	return &Runtime{
		backend: b,
		funcs:   funcs,
		sem:     make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Acquire waits for exclusive access to the interpreter. The returned
// Guard must be released on every path, typically with defer.
func (rt *Runtime) Acquire(ctx context.Context) (*Guard, error) {
	select {
	case rt.sem <- struct{}{}:
	case <-rt.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rt.mu.Lock()
	closed := rt.closed
	rt.mu.Unlock()
	if closed {
		<-rt.sem
		return nil, ErrClosed
	}

	return &Guard{rt: rt, ctx: ctx}, nil
}

// Close waits for the current holder of the guard, then shuts the
// interpreter down. Later acquisitions fail with ErrClosed.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true
	close(rt.done)
	rt.mu.Unlock()

	rt.sem <- struct{}{}
	defer func() { <-rt.sem }()

	return rt.backend.Close()
}
