package engine

import (
	"context"
	"sync"
)

// Suspensions is a process-wide registry of entity types whose hook bodies
// are disabled. Each type is reference counted so nested and concurrent
// suspensions restore correctly.
type Suspensions struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewSuspensions creates an empty registry.
func NewSuspensions() *Suspensions {
	return &Suspensions{counts: make(map[string]int)}
}

// Suspend disables hooks for types and returns the function that restores
// them. The restore function is safe to call more than once.
func (s *Suspensions) Suspend(types ...string) (restore func()) {
	s.mu.Lock()
	for _, t := range types {
		s.counts[t]++
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, t := range types {
				if s.counts[t] <= 1 {
					delete(s.counts, t)
				} else {
					s.counts[t]--
				}
			}
		})
	}
}

// Suspended reports whether hooks for typeName are currently disabled.
func (s *Suspensions) Suspended(typeName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[typeName] > 0
}

// WithSyncDisabled disables every hook body for the named types while fn
// runs. Hooks are restored on every exit path of fn, including errors and
// panics. The suspension is visible to all goroutines using this engine.
func (e *Engine) WithSyncDisabled(ctx context.Context, types []string, fn func(ctx context.Context) error) error {
	restore := e.suspended.Suspend(types...)
	defer restore()
	return fn(ctx)
}

type suppressKey struct{}

// SuppressSync returns a context in which hook bodies for the named types
// are disabled. Unlike WithSyncDisabled, only calls made with the returned
// context are affected.
func SuppressSync(ctx context.Context, types ...string) context.Context {
	prev, _ := ctx.Value(suppressKey{}).(map[string]bool)
	next := make(map[string]bool, len(prev)+len(types))
	for t := range prev {
		next[t] = true
	}
	for _, t := range types {
		next[t] = true
	}
	return context.WithValue(ctx, suppressKey{}, next)
}

// syncSuppressed reports whether hooks for typeName are disabled, either
// process-wide or through ctx.
func (e *Engine) syncSuppressed(ctx context.Context, typeName string) bool {
	if set, ok := ctx.Value(suppressKey{}).(map[string]bool); ok && set[typeName] {
		return true
	}
	return e.suspended.Suspended(typeName)
}
