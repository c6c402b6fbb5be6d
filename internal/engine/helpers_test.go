package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/store"
	"github.com/roach88/autosync/internal/testutil"
)

var errInjected = errors.New("injected failure")

// recorder collects trace events.
type recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (r *recorder) Observe(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// lines renders events as "op type/id [flags]" for compact comparisons.
func (r *recorder) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		s := fmt.Sprintf("%s %s/%s", ev.Op, ev.Type, ev.ID)
		if ev.Update {
			s += " update"
		}
		if ev.Target {
			s += " target"
		}
		if ev.Other != "" {
			s += " -> " + ev.Other
		}
		if ev.Hook != "" {
			s += " hook=" + ev.Hook
		}
		out = append(out, s)
	}
	return out
}

type testEngine struct {
	*Engine
	rec  *recorder
	logs *testutil.LogBuffer
}

func newTestEngine(t *testing.T, reg *descriptor.Registry, opts ...Option) *testEngine {
	t.Helper()
	te := &testEngine{rec: &recorder{}, logs: &testutil.LogBuffer{}}
	base := []Option{
		WithLogger(te.logs.Logger()),
		WithChainIDGenerator(store.NewSequenceGenerator("chain")),
		WithObserver(te.rec),
	}
	te.Engine = New(testutil.OpenStore(t), reg, append(base, opts...)...)
	return te
}

func newPostcodeEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()
	return newTestEngine(t, testutil.PostcodeRegistry(t), opts...)
}

func (te *testEngine) count(t *testing.T, typeName string) int {
	t.Helper()
	n, err := te.Store().CountRecords(context.Background(), typeName)
	require.NoError(t, err)
	return n
}

func (te *testEngine) linkCount(t *testing.T, linkType string) int {
	t.Helper()
	links, err := te.Store().ListLinks(context.Background(), linkType)
	require.NoError(t, err)
	return len(links)
}

// counterpart follows the source's buddy link, failing the test when there
// is none.
func (te *testEngine) counterpart(t *testing.T, src *ir.Record) *ir.Record {
	t.Helper()
	ctx := context.Background()
	pair, err := te.Registry().PairFor(src.Type)
	require.NoError(t, err)
	link, found, err := te.Links().FindBySource(ctx, src, pair.Source.RelatedName())
	require.NoError(t, err)
	require.True(t, found, "no buddy link for %s", src.Ref())
	target, err := te.Links().ResolveTarget(ctx, link, pair.Target.FieldName())
	require.NoError(t, err)
	return target
}

func newSource(postcode string) *ir.Record {
	return ir.NewRecord(testutil.SourceType, ir.IRObject{"postcode": ir.IRString(postcode)})
}

// failingHooks wraps ModelSync with injectable failures.
type failingHooks struct {
	ModelSync
	failPre  bool
	failPost bool
}

func (h failingHooks) PreSave(ctx context.Context, e *Engine, ev *SaveEvent) (bool, error) {
	if h.failPre {
		return false, errInjected
	}
	return h.ModelSync.PreSave(ctx, e, ev)
}

// PostSave propagates first, so a failure has counterpart writes to undo.
func (h failingHooks) PostSave(ctx context.Context, e *Engine, ev *SaveEvent) error {
	if err := h.ModelSync.PostSave(ctx, e, ev); err != nil {
		return err
	}
	if h.failPost {
		return errInjected
	}
	return nil
}

func (h failingHooks) PreDelete(ctx context.Context, e *Engine, ev *DeleteEvent) (bool, error) {
	if h.failPre {
		return false, errInjected
	}
	return h.ModelSync.PreDelete(ctx, e, ev)
}

// countingHooks counts hook calls per phase.
type countingHooks struct {
	ModelSync
	mu    sync.Mutex
	calls map[string]int
}

func newCountingHooks() *countingHooks {
	return &countingHooks{calls: make(map[string]int)}
}

func (h *countingHooks) inc(hook string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[hook]++
}

func (h *countingHooks) get(hook string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[hook]
}

func (h *countingHooks) PreSave(ctx context.Context, e *Engine, ev *SaveEvent) (bool, error) {
	h.inc(HookPreSave)
	return h.ModelSync.PreSave(ctx, e, ev)
}

func (h *countingHooks) PostSave(ctx context.Context, e *Engine, ev *SaveEvent) error {
	h.inc(HookPostSave)
	return h.ModelSync.PostSave(ctx, e, ev)
}

func (h *countingHooks) PreDelete(ctx context.Context, e *Engine, ev *DeleteEvent) (bool, error) {
	h.inc(HookPreDelete)
	return h.ModelSync.PreDelete(ctx, e, ev)
}

func (h *countingHooks) PostDelete(ctx context.Context, e *Engine, ev *DeleteEvent) error {
	h.inc(HookPostDelete)
	return h.ModelSync.PostDelete(ctx, e, ev)
}
