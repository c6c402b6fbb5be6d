package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/engine"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/store"
	"github.com/roach88/autosync/internal/testutil"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	logger   *slog.Logger
	result   *Result
	step     int
	refs     map[string]RecordRef
	readOnly map[string]bool
}

// Option configures Run.
type Option func(*options)

type options struct {
	funcs  map[string]descriptor.ComputeFunc
	logger *slog.Logger
}

// WithFuncs registers the compute functions the scenario config refers to.
func WithFuncs(funcs map[string]descriptor.ComputeFunc) Option {
	return func(o *options) { o.funcs = funcs }
}

// WithLogger sets the logger handed to the engine. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential ids
// and a step clock installed behind the "now" builtin, so traces and
// stored records are identical across runs. Run swaps a package-level
// clock and must not be called concurrently.
//
// A step that fails with an unexpected error, or succeeds when an error
// was expected, marks the result failed; execution continues with the
// next step. The returned error is reserved for setup failures.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: testutil.DiscardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := descriptor.Load(scenario.Config, o.funcs)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(store.NewSequenceGenerator("id")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewStepClock()
	prevNow := descriptor.Now
	descriptor.Now = clock.Now
	defer func() { descriptor.Now = prevNow }()

	h := &Harness{
		store:    st,
		logger:   o.logger,
		result:   NewResult(),
		refs:     make(map[string]RecordRef),
		readOnly: make(map[string]bool),
	}
	h.engine = engine.New(st, reg,
		engine.WithLogger(o.logger),
		engine.WithChainIDGenerator(store.NewSequenceGenerator("chain")),
		engine.WithObserver(engine.ObserverFunc(h.observe)),
	)

	ctx := context.Background()
	for i := range scenario.Steps {
		h.step = i
		if err := h.executeStep(ctx, &scenario.Steps[i]); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	actx := &AssertionContext{
		Ctx:             ctx,
		Engine:          h.engine,
		Refs:            h.refs,
		ReadOnlyUpdates: h.readOnly,
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	if err := h.captureRecords(ctx, reg); err != nil {
		return nil, fmt.Errorf("failed to capture records: %w", err)
	}

	return h.result, nil
}

func (h *Harness) observe(ev engine.TraceEvent) {
	h.result.Trace = append(h.result.Trace, TraceEvent{Step: h.step, TraceEvent: ev})
}

// executeStep runs one step and checks its outcome against ExpectError.
func (h *Harness) executeStep(ctx context.Context, st *Step) error {
	if len(st.Suppress) > 0 {
		ctx = engine.SuppressSync(ctx, st.Suppress...)
	}
	var opts []engine.WriteOption
	if st.Target {
		opts = append(opts, engine.WithTarget())
	}
	if st.Bulk {
		opts = append(opts, engine.WithBulkMode())
	}

	fields, err := ir.ObjectFromMap(st.Fields)
	if err != nil {
		return fmt.Errorf("fields: %w", err)
	}

	var (
		rec     *ir.Record
		stepErr error
	)
	switch st.Op {
	case OpCreate:
		rec = ir.NewRecord(st.Type, fields)
		rec.ID = st.ID
		stepErr = h.engine.Save(ctx, rec, opts...)
		if stepErr == nil && st.Ref != "" {
			h.refs[st.Ref] = RecordRef{Type: rec.Type, ID: rec.ID}
		}
	case OpUpdate:
		if rec, err = h.load(ctx, st.Ref); err != nil {
			h.result.AddError(fmt.Sprintf("step %d: %v", h.step, err))
			return nil
		}
		rec.Assign(fields)
		stepErr = h.engine.Save(ctx, rec, opts...)
		if h.readOnlySource(rec.Type) {
			h.readOnly[st.Ref] = true
		}
	case OpDelete:
		if rec, err = h.load(ctx, st.Ref); err != nil {
			h.result.AddError(fmt.Sprintf("step %d: %v", h.step, err))
			return nil
		}
		stepErr = h.engine.Delete(ctx, rec, opts...)
	case OpBackfill:
		report, err := h.engine.Backfill(ctx, st.Type)
		stepErr = err
		if err == nil {
			h.logger.Info("backfill step completed",
				"step", h.step,
				"type", report.Type,
				"processed", report.Processed,
				"linked", report.Linked,
			)
		}
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}

	h.checkOutcome(st, stepErr)

	if stepErr == nil && st.Counterpart != "" {
		m, found, err := FindCounterpart(ctx, h.engine, rec)
		if err != nil {
			return fmt.Errorf("counterpart of %s: %w", rec.Ref(), err)
		}
		if !found {
			h.result.AddError(fmt.Sprintf("step %d: %s has no counterpart to bind as %q", h.step, rec.Ref(), st.Counterpart))
			return nil
		}
		h.refs[st.Counterpart] = RecordRef{Type: m.Record.Type, ID: m.Record.ID}
	}
	return nil
}

// checkOutcome compares a step's error with the expected error code.
func (h *Harness) checkOutcome(st *Step, stepErr error) {
	switch {
	case st.ExpectError == "" && stepErr != nil:
		h.result.AddError(fmt.Sprintf("step %d: %s failed: %v", h.step, st.Op, stepErr))
	case st.ExpectError != "" && stepErr == nil:
		h.result.AddError(fmt.Sprintf("step %d: expected error %s, got success", h.step, st.ExpectError))
	case st.ExpectError != "" && string(engine.CodeOf(stepErr)) != st.ExpectError:
		h.result.AddError(fmt.Sprintf("step %d: expected error %s, got %s: %v",
			h.step, st.ExpectError, engine.CodeOf(stepErr), stepErr))
	default:
		h.logger.Debug("step completed", "step", h.step, "op", st.Op, "error", stepErr)
	}
}

func (h *Harness) load(ctx context.Context, alias string) (*ir.Record, error) {
	ref, ok := h.refs[alias]
	if !ok {
		return nil, fmt.Errorf("ref %q was never bound", alias)
	}
	return h.store.GetRecord(ctx, ref.Type, ref.ID)
}

// readOnlySource reports whether writes of typeName are described by a
// read-only descriptor.
func (h *Harness) readOnlySource(typeName string) bool {
	pair, err := h.engine.Registry().PairFor(typeName)
	return err == nil && pair.Source.ReadOnly
}

// captureRecords stores the final records of every registered entity type.
func (h *Harness) captureRecords(ctx context.Context, reg *descriptor.Registry) error {
	aliases := make(map[string]string, len(h.refs))
	for alias, ref := range h.refs {
		aliases[ref.String()] = alias
	}

	for _, typeName := range reg.TypeNames() {
		recs, err := h.store.ListRecords(ctx, typeName)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			continue
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
		states := make([]RecordState, len(recs))
		for i, r := range recs {
			states[i] = RecordState{
				Ref:     aliases[r.Ref()],
				ID:      r.ID,
				Version: r.Version,
				Fields:  r.Fields,
			}
		}
		h.result.Records[typeName] = states
	}
	return nil
}
