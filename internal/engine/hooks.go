package engine

import (
	"context"
	"fmt"

	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/store"
)

// SaveEvent describes one intercepted Save.
type SaveEvent struct {
	Record *ir.Record
	Update bool // the record existed in storage before this write
	Target bool // the write is a counterpart write and must not propagate
	Bulk   bool
	Chain  string
}

// DeleteEvent describes one intercepted Delete.
type DeleteEvent struct {
	Record *ir.Record
	Target bool
	Bulk   bool
	Chain  string
}

// Hooks is the set of lifecycle hooks an entity type runs around its writes.
//
// PreSave and PreDelete return whether the matching post-hook runs. The
// base write happens regardless of their answer.
type Hooks interface {
	PreSave(ctx context.Context, e *Engine, ev *SaveEvent) (proceed bool, err error)
	PostSave(ctx context.Context, e *Engine, ev *SaveEvent) error
	PreDelete(ctx context.Context, e *Engine, ev *DeleteEvent) (proceed bool, err error)
	PostDelete(ctx context.Context, e *Engine, ev *DeleteEvent) error
}

// ExistenceChecker is implemented by Hooks that decide themselves whether a
// save is an update.
type ExistenceChecker interface {
	ExistsInStorage(ctx context.Context, e *Engine, r *ir.Record) (bool, error)
}

// ModelSync is the default Hooks implementation. Embed it to override
// single hooks:
//
//	type partnerHooks struct{ engine.ModelSync }
//
//	func (partnerHooks) PostDelete(ctx context.Context, e *engine.Engine, ev *engine.DeleteEvent) error {
//		...
//	}
type ModelSync struct{}

var _ Hooks = ModelSync{}

// PreSave refuses propagation for soft-deleted records and excluded types.
func (ModelSync) PreSave(_ context.Context, e *Engine, ev *SaveEvent) (bool, error) {
	if e.excluded(ev.Record.Type) {
		return false, nil
	}
	if ev.Record.SoftDeleted() {
		return false, nil
	}
	return true, nil
}

// PostSave propagates the saved record to its counterpart.
func (ModelSync) PostSave(ctx context.Context, e *Engine, ev *SaveEvent) error {
	if ev.Target {
		return nil
	}
	pair, err := e.reg.PairFor(ev.Record.Type)
	if err != nil {
		return err
	}
	_, err = e.Synchronize(ctx, ev.Record, pair, ev.Update)
	return err
}

// PreDelete deletes the counterpart, then the link. A link whose
// counterpart is already gone is removed on its own.
func (ModelSync) PreDelete(ctx context.Context, e *Engine, ev *DeleteEvent) (bool, error) {
	if ev.Target || e.excluded(ev.Record.Type) {
		return true, nil
	}
	pair, err := e.reg.PairFor(ev.Record.Type)
	if err != nil {
		return false, err
	}

	link, found, err := e.links.FindBySource(ctx, ev.Record, pair.Source.RelatedName())
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}

	target, err := e.links.ResolveTarget(ctx, link, pair.Target.FieldName())
	switch {
	case store.IsNotFound(err):
		e.logger.Debug("sync delete: counterpart already gone",
			"type", ev.Record.Type, "id", ev.Record.ID, "link", link.ID, "chain", ev.Chain)
	case err != nil:
		return false, err
	default:
		if err := e.Delete(ctx, target, WithTarget()); err != nil {
			return false, fmt.Errorf("delete counterpart %s: %w", target.Ref(), err)
		}
	}

	if err := e.links.Delete(ctx, link); err != nil {
		return false, err
	}
	e.observe(TraceEvent{Op: TraceUnlink, Type: ev.Record.Type, ID: ev.Record.ID, Link: link.ID, Chain: ev.Chain})
	return true, nil
}

// PostDelete does nothing.
func (ModelSync) PostDelete(context.Context, *Engine, *DeleteEvent) error {
	return nil
}

// excluded reports whether typeName is bound to a pair that excludes it.
func (e *Engine) excluded(typeName string) bool {
	pair, err := e.reg.PairFor(typeName)
	return err == nil && pair.Excludes(typeName)
}

// existsInStorage decides whether a save is an update. Hooks implementing
// ExistenceChecker decide themselves; types with assigned identity ask the
// store; otherwise a non-empty primary key means the record exists.
func (e *Engine) existsInStorage(ctx context.Context, h Hooks, r *ir.Record) (bool, error) {
	if c, ok := h.(ExistenceChecker); ok {
		return c.ExistsInStorage(ctx, e, r)
	}
	if t, err := e.reg.Type(r.Type); err == nil && t.AssignedIdentity() {
		return e.store.RecordExists(ctx, r.Type, r.ID)
	}
	return r.ID != "", nil
}
