package query

import "github.com/roach88/autosync/internal/ir"

// Matches evaluates p against an in-memory record. A nil predicate matches
// every record; a nil record matches nothing.
func Matches(p Predicate, r *ir.Record) bool {
	if r == nil {
		return false
	}
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		v, ok := r.Get(pred.Field)
		if !ok {
			return false
		}
		if ir.IsNull(pred.Value) {
			return ir.IsNull(v)
		}
		return !ir.IsNull(v) && ir.Equal(v, pred.Value)
	case Absent:
		v, ok := r.Get(pred.Field)
		return !ok || ir.IsNull(v)
	case Live:
		return !r.SoftDeleted()
	case And:
		for _, sub := range pred.Predicates {
			if !Matches(sub, r) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Filter returns the records matching p, preserving order.
func Filter(p Predicate, records []*ir.Record) []*ir.Record {
	out := make([]*ir.Record, 0, len(records))
	for _, r := range records {
		if Matches(p, r) {
			out = append(out, r)
		}
	}
	return out
}
