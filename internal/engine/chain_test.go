package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainGuard_FirstEnterSucceeds(t *testing.T) {
	g := NewChainGuard()
	require.NotNil(t, g)
	assert.Equal(t, 0, g.HistorySize())

	assert.True(t, g.Enter("chain-1", "legacy_address/1", "address"))
	assert.Equal(t, 1, g.HistorySize())
	assert.Equal(t, 1, g.ChainHistorySize("chain-1"))
}

func TestChainGuard_SecondEnterIsCycle(t *testing.T) {
	g := NewChainGuard()

	assert.True(t, g.Enter("chain-1", "legacy_address/1", "address"))
	assert.False(t, g.Enter("chain-1", "legacy_address/1", "address"), "same source and target in one chain")
}

func TestChainGuard_Independence(t *testing.T) {
	g := NewChainGuard()
	g.Enter("chain-1", "legacy_address/1", "address")

	assert.True(t, g.Enter("chain-2", "legacy_address/1", "address"), "different chain")
	assert.True(t, g.Enter("chain-1", "legacy_address/2", "address"), "different source")
	assert.True(t, g.Enter("chain-1", "legacy_address/1", "other"), "different target")
	assert.Equal(t, 3, g.ChainHistorySize("chain-1"))
}

func TestChainGuard_Clear(t *testing.T) {
	g := NewChainGuard()
	g.Enter("chain-1", "a/1", "b")
	g.Enter("chain-2", "a/1", "b")

	g.Clear("chain-1")
	assert.Equal(t, 1, g.HistorySize())
	assert.Equal(t, 0, g.ChainHistorySize("chain-1"))
	assert.True(t, g.Enter("chain-1", "a/1", "b"))

	g.Clear("never-seen")
}

func TestChainGuard_Concurrent(t *testing.T) {
	g := NewChainGuard()
	var wg sync.WaitGroup
	wins := make(chan bool, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- g.Enter("chain-1", "a/1", "b")
		}()
	}
	wg.Wait()
	close(wins)

	n := 0
	for w := range wins {
		if w {
			n++
		}
	}
	assert.Equal(t, 1, n, "exactly one concurrent Enter succeeds")
}

func TestChainFrom(t *testing.T) {
	assert.Empty(t, ChainFrom(context.Background()))
	ctx := context.WithValue(context.Background(), chainKey{}, "chain-7")
	assert.Equal(t, "chain-7", ChainFrom(ctx))
}
