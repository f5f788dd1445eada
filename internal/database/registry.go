package database

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry hands out the single Store of a process. Concurrent Acquire calls
// during initialization share one in-flight OpenStore and its result.
type Registry struct {
	opts Options

	mu    sync.Mutex
	store *Store
	group singleflight.Group
	open  func(ctx context.Context, opts Options) (*Store, error)
}

func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, open: OpenStore}
}

// Acquire returns the shared Store, initializing it on first use. A failed
// initialization is not remembered; the next call tries again.
func (r *Registry) Acquire(ctx context.Context) (*Store, error) {
	r.mu.Lock()
	if s := r.store; s != nil {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("init", func() (any, error) {
		r.mu.Lock()
		if s := r.store; s != nil {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		s, err := r.open(ctx, r.opts)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.store = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Persist flushes the store if it has been opened.
func (r *Registry) Persist(ctx context.Context) error {
	r.mu.Lock()
	s := r.store
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Persist(ctx)
}

// Close persists and closes the store. The next Acquire re-initializes.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	s := r.store
	r.store = nil
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close(ctx)
}
