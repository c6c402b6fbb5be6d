package engine

import (
	"log/slog"
	"sync"

	"github.com/roach88/autosync/internal/buddy"
	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/store"
)

// Engine intercepts record writes and keeps both representations in sync.
//
// Thread-safety model:
//   - Save, Delete, Synchronize: safe from any goroutine; each top-level
//     call runs in its own store transaction
//   - SetHooks: safe from any goroutine, usually called at startup
//   - WithSyncDisabled: process-wide, visible to concurrent callers
type Engine struct {
	store     *store.Store
	reg       *descriptor.Registry
	links     *buddy.Manager
	chains    *ChainGuard
	chainIDs  store.IDGenerator
	suspended *Suspensions
	logger    *slog.Logger
	observer  Observer

	mu    sync.RWMutex
	hooks map[string]Hooks
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithChainIDGenerator sets the generator for chain ids. Default: UUIDv7.
// Tests use a deterministic generator for golden traces.
func WithChainIDGenerator(g store.IDGenerator) Option {
	return func(e *Engine) {
		e.chainIDs = g
	}
}

// WithObserver registers an observer notified of every write, link change
// and swallowed hook failure.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithHooks sets the hooks for one entity type, replacing the default.
func WithHooks(typeName string, h Hooks) Option {
	return func(e *Engine) {
		e.hooks[typeName] = h
	}
}

// New creates an Engine over st and reg. Every type with a bound sync pair
// gets the default ModelSync hooks; other types are persisted without hooks
// unless configured through WithHooks or SetHooks.
func New(st *store.Store, reg *descriptor.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		reg:       reg,
		links:     buddy.NewManager(st, reg),
		chains:    NewChainGuard(),
		chainIDs:  store.UUIDv7Generator{},
		suspended: NewSuspensions(),
		logger:    slog.Default(),
		hooks:     make(map[string]Hooks),
	}
	for _, t := range reg.SyncedTypes() {
		e.hooks[t] = ModelSync{}
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// SetHooks replaces the hooks for an entity type. A nil h removes them so
// the type is persisted without interception.
func (e *Engine) SetHooks(typeName string, h Hooks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h == nil {
		delete(e.hooks, typeName)
		return
	}
	e.hooks[typeName] = h
}

func (e *Engine) hooksFor(typeName string) Hooks {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hooks[typeName]
}

// Store returns the record store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Registry returns the descriptor registry.
func (e *Engine) Registry() *descriptor.Registry {
	return e.reg
}

// Links returns the buddy link manager.
func (e *Engine) Links() *buddy.Manager {
	return e.links
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}
