package engine

import (
	"context"
	"sync"
)

// ChainGuard tracks which sources have propagated within each chain.
//
// A chain is everything one top-level Save or Delete causes. Counterpart
// writes carry target=true and never propagate, so a second propagation of
// the same (source, target descriptor) within one chain means a hook is
// bypassing the direction marker:
//
//	legacy_address/1 saved → address/9 saved with target=false by a custom hook
//	→ address/9 propagates → legacy_address/1 saved again
//	→ legacy_address/1 would propagate again ← CYCLE DETECTED
//
// Thread-safe: all methods may be called concurrently.
type ChainGuard struct {
	mu      sync.Mutex
	history map[string]map[string]bool // map[chain]map[source ref + target]bool
}

// NewChainGuard creates an empty guard.
func NewChainGuard() *ChainGuard {
	return &ChainGuard{history: make(map[string]map[string]bool)}
}

// Enter records that ref propagates onto target in chain. It returns false
// when that already happened in this chain.
func (g *ChainGuard) Enter(chain, ref, target string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.history[chain] == nil {
		g.history[chain] = make(map[string]bool)
	}
	key := ref + "->" + target
	if g.history[chain][key] {
		return false
	}
	g.history[chain][key] = true
	return true
}

// Clear removes all history for a chain. Called when the top-level write
// returns.
func (g *ChainGuard) Clear(chain string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.history, chain)
}

// HistorySize returns the number of chains with tracked history.
func (g *ChainGuard) HistorySize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.history)
}

// ChainHistorySize returns the number of propagations tracked for a chain.
func (g *ChainGuard) ChainHistorySize(chain string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.history[chain])
}

type chainKey struct{}

// ChainFrom returns the chain id carried by ctx, or "" outside a write.
func ChainFrom(ctx context.Context) string {
	id, _ := ctx.Value(chainKey{}).(string)
	return id
}

// enterChain returns ctx carrying a chain id. top is true when this call
// started the chain and must clear it.
func (e *Engine) enterChain(ctx context.Context) (context.Context, string, bool) {
	if id := ChainFrom(ctx); id != "" {
		return ctx, id, false
	}
	id := e.chainIDs.Generate()
	return context.WithValue(ctx, chainKey{}, id), id, true
}
