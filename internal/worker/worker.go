// Package worker bounds how many requests run the pipeline at once.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/panjf2000/ants/v2"
)

// ErrPoolClosed is returned by Run after Release.
var ErrPoolClosed = errors.New("worker pool closed")

// PanicError carries a panic recovered from a task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("task panicked: %v", e.Value) }

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	pool *ants.Pool
}

// New creates a pool of size workers. Callers block in Run while all workers are busy.
func New(size int) (*Pool, error) {
	p, err := ants.NewPool(size, ants.WithPanicHandler(func(v any) {
		// Run recovers task panics itself; this only fires for bugs in the wrapper.
		slog.Error("panic in worker pool", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Run executes fn on a pool worker and waits for it to return. A panic in fn
// is recovered and returned as a *PanicError.
func (p *Pool) Run(fn func()) error {
	done := make(chan error, 1)
	err := p.pool.Submit(func() {
		defer func() {
			if v := recover(); v != nil {
				done <- &PanicError{Value: v, Stack: debug.Stack()}
			}
		}()
		fn()
		done <- nil
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return fmt.Errorf("submitting task: %w", err)
	}
	return <-done
}

// Running returns the number of busy workers.
func (p *Pool) Running() int { return p.pool.Running() }

// Cap returns the pool size.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Release closes the pool. In-flight tasks finish; new Run calls fail.
func (p *Pool) Release() { p.pool.Release() }
