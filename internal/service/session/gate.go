package session

import (
	"context"
	"sync"
	"sync/atomic"
)

// Gate is a one-shot completion signal. The first Release opens it, later
// calls are no-ops. Any number of waiters observe the opening.
type Gate struct {
	once     sync.Once
	done     chan struct{}
	attempts atomic.Int32
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Release opens the gate. Returns true only for the call that opened it.
func (g *Gate) Release() bool {
	g.attempts.Add(1)
	released := false
	g.once.Do(func() {
		close(g.done)
		released = true
	})
	return released
}

// Wait blocks until the gate opens or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Released reports whether the gate is open.
func (g *Gate) Released() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Attempts returns how many times Release was called.
func (g *Gate) Attempts() int {
	return int(g.attempts.Load())
}
