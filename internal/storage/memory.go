package storage

import (
	"context"
	"sync"
)

// MemoryRunner satisfies Runner without a database. In-memory repositories
// guard their own state, so a plain transaction is just the function call;
// serializable scopes take a runner-wide lock so they cannot interleave,
// matching the isolation the database runner provides.
type MemoryRunner struct {
	mu sync.Mutex
}

// NewMemoryRunner builds a runner for the memory storage mode and tests.
func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

// RunInTx executes fn, holding the serializable lock when requested.
func (r *MemoryRunner) RunInTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	if opts.Serializable {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	return fn(ctx)
}
