package engine

import (
	"context"
	"fmt"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/projector"
)

// Synchronize ensures a counterpart of source exists under pair and carries
// the projected field values.
//
// With update=true and an existing buddy link, the linked counterpart is
// updated in place and re-read from the store. Otherwise a new counterpart
// is created and linked to source. Counterpart writes carry the target
// marker and never propagate further.
//
// Called from PostSave; also usable directly, in which case it runs in its
// own transaction.
func (e *Engine) Synchronize(ctx context.Context, source *ir.Record, pair descriptor.Pair, update bool) (*ir.Record, error) {
	if pair.Source == nil || pair.Target == nil {
		return nil, &SyncError{Code: ErrCodeDescriptorResolution, Message: "incomplete descriptor pair", Ref: source.Ref()}
	}
	if source.Type != pair.Source.Type.Name {
		return nil, &SyncError{
			Code:    ErrCodeDescriptorResolution,
			Message: fmt.Sprintf("descriptor %q is for type %q", pair.Source.Name, pair.Source.Type.Name),
			Ref:     source.Ref(),
		}
	}
	if source.ID == "" {
		return nil, fmt.Errorf("synchronize %s: source must be saved first", source.Ref())
	}

	ctx, chain, top := e.enterChain(ctx)
	if top {
		defer e.chains.Clear(chain)
	}

	var out *ir.Record
	err := e.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.synchronize(ctx, source, pair, update, chain)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) synchronize(ctx context.Context, source *ir.Record, pair descriptor.Pair, update bool, chain string) (*ir.Record, error) {
	ref := source.Ref()
	if !e.chains.Enter(chain, ref, pair.Target.Name) {
		return nil, NewCycleError(chain, ref, pair.Target.Name)
	}

	values, err := projector.Project(source, pair)
	if err != nil {
		return nil, wrapSyncError(err, ref, "", chain)
	}

	if update {
		link, found, err := e.links.FindBySource(ctx, source, pair.Source.RelatedName())
		if err != nil {
			return nil, wrapSyncError(err, ref, "", chain)
		}
		if found {
			target, err := e.links.ResolveTarget(ctx, link, pair.Target.FieldName())
			if err != nil {
				return nil, wrapSyncError(fmt.Errorf("linked counterpart of %s: %w", ref, err), ref, "", chain)
			}
			target.Assign(values)
			if err := e.Save(ctx, target, WithTarget()); err != nil {
				return nil, err
			}
			fresh, err := e.store.GetRecord(ctx, target.Type, target.ID)
			if err != nil {
				return nil, wrapSyncError(err, ref, "", chain)
			}
			e.logger.Debug("counterpart updated", "source", ref, "target", fresh.Ref(), "chain", chain)
			return fresh, nil
		}
	}

	target := ir.NewRecord(pair.Target.Type.Name, values)
	if err := e.Save(ctx, target, WithTarget()); err != nil {
		return nil, err
	}
	link, err := e.links.Create(ctx, pair, source, target)
	if err != nil {
		return nil, wrapSyncError(err, ref, "", chain)
	}
	e.observe(TraceEvent{Op: TraceLink, Type: source.Type, ID: source.ID, Link: link.ID, Other: target.Ref(), Chain: chain})
	e.logger.Debug("counterpart created", "source", ref, "target", target.Ref(), "link", link.ID, "chain", chain)
	return target, nil
}
