package console

import (
	"context"
	"errors"
	"sync"

	"github.com/joshuadavidthomas/aikeys/internal/models"
	"github.com/joshuadavidthomas/aikeys/internal/mutation"
)

type Status int

const (
	StatusPending Status = iota
	StatusSettled
	StatusSuperseded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSettled:
		return "settled"
	case StatusSuperseded:
		return "superseded"
	default:
		return "failed"
	}
}

// Intent tracks one asynchronous mutation for spinners and disabled
// controls. Dropping an Intent does not cancel the mutation.
type Intent struct {
	Op         mutation.Op
	ProviderID string
	Scope      models.Scope

	done   chan struct{}
	mu     sync.Mutex
	status Status
	err    error
}

func newIntent(op mutation.Op, providerID string, scope models.Scope) *Intent {
	return &Intent{Op: op, ProviderID: providerID, Scope: scope, done: make(chan struct{})}
}

func (i *Intent) settle(err error) {
	i.mu.Lock()
	switch {
	case err == nil:
		i.status = StatusSettled
	case errors.Is(err, mutation.ErrSuperseded):
		i.status = StatusSuperseded
	default:
		i.status = StatusFailed
		i.err = err
	}
	i.mu.Unlock()
	close(i.done)
}

func (i *Intent) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Err is the failure, if any. A superseded intent has no error.
func (i *Intent) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

func (i *Intent) Done() <-chan struct{} { return i.done }

// Wait blocks until the intent settles or ctx ends.
func (i *Intent) Wait(ctx context.Context) error {
	select {
	case <-i.done:
		return i.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
