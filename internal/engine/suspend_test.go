package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/autosync/internal/testutil"
)

func TestSuspensions_RefCounted(t *testing.T) {
	s := NewSuspensions()

	outer := s.Suspend("a", "b")
	inner := s.Suspend("a")
	assert.True(t, s.Suspended("a"))
	assert.True(t, s.Suspended("b"))

	inner()
	assert.True(t, s.Suspended("a"), "outer suspension still active")

	outer()
	assert.False(t, s.Suspended("a"))
	assert.False(t, s.Suspended("b"))

	outer()
	assert.False(t, s.Suspended("a"), "restore is idempotent")
}

func TestSuspensions_Concurrent(t *testing.T) {
	s := NewSuspensions()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			restore := s.Suspend("a")
			_ = s.Suspended("a")
			restore()
		}()
	}
	wg.Wait()
	assert.False(t, s.Suspended("a"))
}

func TestWithSyncDisabled_SkipsHooks(t *testing.T) {
	te := newPostcodeEngine(t)
	ctx := context.Background()

	err := te.WithSyncDisabled(ctx, []string{testutil.SourceType}, func(ctx context.Context) error {
		return te.Save(ctx, newSource("10696"))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, te.count(t, testutil.SourceType), "base write still lands")
	assert.Equal(t, 0, te.count(t, testutil.TargetType))

	require.NoError(t, te.Save(ctx, newSource("20095")))
	assert.Equal(t, 1, te.count(t, testutil.TargetType), "hooks restored after the scope")
}

func TestWithSyncDisabled_RestoresOnError(t *testing.T) {
	te := newPostcodeEngine(t)

	err := te.WithSyncDisabled(context.Background(), []string{testutil.SourceType}, func(context.Context) error {
		return errInjected
	})
	assert.True(t, errors.Is(err, errInjected))
	assert.False(t, te.suspended.Suspended(testutil.SourceType))
}

func TestWithSyncDisabled_RestoresOnPanic(t *testing.T) {
	te := newPostcodeEngine(t)

	func() {
		defer func() {
			assert.Equal(t, "boom", recover())
		}()
		_ = te.WithSyncDisabled(context.Background(), []string{testutil.SourceType}, func(context.Context) error {
			panic("boom")
		})
	}()

	assert.False(t, te.suspended.Suspended(testutil.SourceType))
}

func TestWithSyncDisabled_DeleteSkipsCascade(t *testing.T) {
	te := newPostcodeEngine(t)
	ctx := context.Background()

	src := newSource("10696")
	require.NoError(t, te.Save(ctx, src))

	err := te.WithSyncDisabled(ctx, []string{testutil.SourceType}, func(ctx context.Context) error {
		return te.Delete(ctx, src)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, te.count(t, testutil.SourceType))
	assert.Equal(t, 1, te.count(t, testutil.TargetType), "counterpart kept")
	assert.Equal(t, 0, te.linkCount(t, testutil.LinkName))
}

func TestSuppressSync_ContextScoped(t *testing.T) {
	te := newPostcodeEngine(t)
	ctx := context.Background()

	quiet := SuppressSync(ctx, testutil.SourceType)
	require.NoError(t, te.Save(quiet, newSource("10696")))
	assert.Equal(t, 0, te.count(t, testutil.TargetType))

	require.NoError(t, te.Save(ctx, newSource("20095")))
	assert.Equal(t, 1, te.count(t, testutil.TargetType), "other contexts unaffected")

	both := SuppressSync(quiet, testutil.TargetType)
	assert.True(t, te.syncSuppressed(both, testutil.SourceType))
	assert.True(t, te.syncSuppressed(both, testutil.TargetType))
	assert.False(t, te.syncSuppressed(quiet, testutil.TargetType), "parent context unchanged")
}
