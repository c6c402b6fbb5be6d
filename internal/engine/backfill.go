package engine

import (
	"context"
	"fmt"

	"github.com/roach88/autosync/internal/query"
)

// BackfillReport summarizes one Backfill run.
type BackfillReport struct {
	Type      string `json:"type"`
	Processed int    `json:"processed"`
	Linked    int    `json:"linked"`    // counterparts created by this run
	Refreshed int    `json:"refreshed"` // counterparts that already existed
	Unlinked  int    `json:"unlinked"`  // records still without counterpart
}

// Backfill re-saves every record of typeName visible through its source
// descriptor's scope and matching every filter, in bulk mode. Records without a counterpart get one;
// linked counterparts are refreshed. Hook failures are logged and leave the
// record unlinked; storage failures stop the run.
//
// Each record is saved in its own transaction.
func (e *Engine) Backfill(ctx context.Context, typeName string, filters ...query.Predicate) (BackfillReport, error) {
	report := BackfillReport{Type: typeName}

	pair, err := e.reg.PairFor(typeName)
	if err != nil {
		return report, wrapSyncError(err, typeName, "", "")
	}
	if pair.Excludes(typeName) {
		return report, fmt.Errorf("backfill %s: type is excluded from synchronization", typeName)
	}

	records, err := e.store.QueryRecords(ctx, query.Select{
		Type:   typeName,
		Filter: query.All(append([]query.Predicate{pair.Source.Scope.Predicate()}, filters...)...),
	})
	if err != nil {
		return report, err
	}

	e.logger.Info("backfill starting", "type", typeName, "records", len(records))

	related := pair.Source.RelatedName()
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		_, hadLink, err := e.links.FindBySource(ctx, r, related)
		if err != nil {
			return report, err
		}
		if err := e.Save(ctx, r, WithBulkMode()); err != nil {
			return report, fmt.Errorf("backfill %s: %w", r.Ref(), err)
		}
		_, hasLink, err := e.links.FindBySource(ctx, r, related)
		if err != nil {
			return report, err
		}

		report.Processed++
		switch {
		case hasLink && hadLink:
			report.Refreshed++
		case hasLink:
			report.Linked++
		default:
			report.Unlinked++
		}
	}

	e.logger.Info("backfill completed",
		"type", typeName,
		"processed", report.Processed,
		"linked", report.Linked,
		"refreshed", report.Refreshed,
		"unlinked", report.Unlinked)
	return report, nil
}
