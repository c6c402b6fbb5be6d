package engine

import (
	"context"
	"fmt"

	"github.com/roach88/autosync/internal/ir"
)

// Hook names used in logs, traces and SyncError.Hook.
const (
	HookPreSave    = "pre_save"
	HookPostSave   = "post_save"
	HookPreDelete  = "pre_delete"
	HookPostDelete = "post_delete"
	hookExists     = "exists_in_storage"
	hookPersist    = "persist"
)

type writeOptions struct {
	target bool
	bulk   bool
}

// WriteOption configures a single Save or Delete.
type WriteOption func(*writeOptions)

// WithTarget marks the write as the propagation of another write. Hooks see
// Target=true and the default hooks do not propagate it further.
func WithTarget() WriteOption {
	return func(o *writeOptions) {
		o.target = true
	}
}

// WithBulkMode runs the write under the best-effort policy: hook failures
// are logged and treated as "do not propagate" instead of being returned.
// The base write is kept.
func WithBulkMode() WriteOption {
	return func(o *writeOptions) {
		o.bulk = true
	}
}

func applyWriteOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Save persists r and runs its hooks:
//
//	PreSave → persist (always) → PostSave (only if PreSave returned true)
//
// A top-level call runs in its own transaction; a call made from inside a
// hook joins the caller's transaction. In strict mode any hook error aborts
// the call and the transaction rolls back. r.ID and r.Version are updated
// in place.
func (e *Engine) Save(ctx context.Context, r *ir.Record, opts ...WriteOption) error {
	if r == nil {
		return fmt.Errorf("save: nil record")
	}
	o := applyWriteOptions(opts)

	ctx, chain, top := e.enterChain(ctx)
	if top {
		defer e.chains.Clear(chain)
	}

	return e.store.RunInTx(ctx, func(ctx context.Context) error {
		return e.save(ctx, r, o, chain)
	})
}

func (e *Engine) save(ctx context.Context, r *ir.Record, o writeOptions, chain string) error {
	h := e.hooksFor(r.Type)

	update, err := e.existsInStorage(ctx, h, r)
	if err != nil {
		return wrapSyncError(err, r.Ref(), hookExists, chain)
	}
	ev := &SaveEvent{Record: r, Update: update, Target: o.target, Bulk: o.bulk, Chain: chain}

	e.logger.Debug("sync save starting",
		"type", r.Type, "id", r.ID, "update", update, "target", o.target, "bulk", o.bulk, "chain", chain)

	active := h != nil && !e.syncSuppressed(ctx, r.Type)

	proceed := false
	if active {
		proceed, err = e.runGate(ctx, r, HookPreSave, o.bulk, chain, func(ctx context.Context) (bool, error) {
			return h.PreSave(ctx, e, ev)
		})
		if err != nil {
			return err
		}
	}

	if err := e.store.SaveRecord(ctx, r); err != nil {
		return wrapSyncError(err, r.Ref(), hookPersist, chain)
	}
	e.observe(TraceEvent{Op: TraceSave, Type: r.Type, ID: r.ID, Update: update, Target: o.target, Bulk: o.bulk, Chain: chain})

	if proceed {
		err := e.runHook(ctx, r, HookPostSave, o.bulk, chain, func(ctx context.Context) error {
			return h.PostSave(ctx, e, ev)
		})
		if err != nil {
			return err
		}
	}

	e.logger.Debug("sync save completed",
		"type", r.Type, "id", r.ID, "propagated", proceed, "chain", chain)
	return nil
}

// Delete removes r and runs its hooks:
//
//	PreDelete → delete (always) → PostDelete (only if PreDelete returned true)
//
// Transactions and error policy follow Save.
func (e *Engine) Delete(ctx context.Context, r *ir.Record, opts ...WriteOption) error {
	if r == nil {
		return fmt.Errorf("delete: nil record")
	}
	if r.ID == "" {
		return fmt.Errorf("delete %s: record has no id", r.Ref())
	}
	o := applyWriteOptions(opts)

	ctx, chain, top := e.enterChain(ctx)
	if top {
		defer e.chains.Clear(chain)
	}

	return e.store.RunInTx(ctx, func(ctx context.Context) error {
		return e.delete(ctx, r, o, chain)
	})
}

func (e *Engine) delete(ctx context.Context, r *ir.Record, o writeOptions, chain string) error {
	h := e.hooksFor(r.Type)
	ev := &DeleteEvent{Record: r, Target: o.target, Bulk: o.bulk, Chain: chain}

	e.logger.Debug("sync delete starting",
		"type", r.Type, "id", r.ID, "target", o.target, "bulk", o.bulk, "chain", chain)

	active := h != nil && !e.syncSuppressed(ctx, r.Type)

	proceed := false
	if active {
		var err error
		proceed, err = e.runGate(ctx, r, HookPreDelete, o.bulk, chain, func(ctx context.Context) (bool, error) {
			return h.PreDelete(ctx, e, ev)
		})
		if err != nil {
			return err
		}
	}

	if err := e.store.DeleteRecord(ctx, r.Type, r.ID); err != nil {
		return wrapSyncError(err, r.Ref(), hookPersist, chain)
	}
	e.observe(TraceEvent{Op: TraceDelete, Type: r.Type, ID: r.ID, Target: o.target, Bulk: o.bulk, Chain: chain})

	if proceed {
		err := e.runHook(ctx, r, HookPostDelete, o.bulk, chain, func(ctx context.Context) error {
			return h.PostDelete(ctx, e, ev)
		})
		if err != nil {
			return err
		}
	}

	e.logger.Debug("sync delete completed",
		"type", r.Type, "id", r.ID, "propagated", proceed, "chain", chain)
	return nil
}

// runGate runs a pre-hook under the write's error policy.
//
// Strict: the error is returned with record, hook and chain attached.
// Bulk: the hook runs inside a savepoint; on failure its writes are rolled
// back, the error is logged and the result is proceed=false.
func (e *Engine) runGate(ctx context.Context, r *ir.Record, hook string, bulk bool, chain string, fn func(ctx context.Context) (bool, error)) (bool, error) {
	if !bulk {
		proceed, err := fn(ctx)
		if err != nil {
			return false, wrapSyncError(err, r.Ref(), hook, chain)
		}
		return proceed, nil
	}

	var proceed bool
	err := e.store.Savepoint(ctx, func(ctx context.Context) error {
		var err error
		proceed, err = fn(ctx)
		return err
	})
	if err != nil {
		e.swallow(r, hook, chain, err)
		return false, nil
	}
	return proceed, nil
}

// runHook runs a post-hook under the write's error policy.
func (e *Engine) runHook(ctx context.Context, r *ir.Record, hook string, bulk bool, chain string, fn func(ctx context.Context) error) error {
	_, err := e.runGate(ctx, r, hook, bulk, chain, func(ctx context.Context) (bool, error) {
		return false, fn(ctx)
	})
	return err
}

// swallow records a bulk-mode hook failure. It is visible only in logs and
// to observers.
func (e *Engine) swallow(r *ir.Record, hook, chain string, err error) {
	err = wrapSyncError(err, r.Ref(), hook, chain)
	e.logger.Error("sync hook failed in bulk mode",
		"type", r.Type,
		"id", r.ID,
		"hook", hook,
		"chain", chain,
		"code", string(CodeOf(err)),
		"error", err)
	e.observe(TraceEvent{Op: TraceHookFailed, Type: r.Type, ID: r.ID, Bulk: true, Hook: hook, Error: string(CodeOf(err)), Chain: chain})
}
