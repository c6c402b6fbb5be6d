package query

import "github.com/roach88/autosync/internal/ir"

// Predicate represents a filter condition over one record's fields.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select represents access to the records of one entity type.
//
// Semantics:
//
//	SELECT type, id, fields, version FROM records
//	WHERE type = <Type> AND <Filter>
//	ORDER BY id COLLATE BINARY
//
// Example:
//
//	Select{
//	  Type: "legacy_address",
//	  Filter: And{Predicates: []Predicate{
//	    Live{},
//	    Equals{Field: "city", Value: ir.IRString("Berlin")},
//	  }},
//	}
type Select struct {
	Type   string    // Entity type name
	Filter Predicate // nil = every record of Type
}

// Equals represents a field-equals-literal predicate.
//
// The field must be present and hold the same scalar value. Value is an
// ir.IRString, ir.IRInt, ir.IRBool or ir.IRNull. Equals with ir.IRNull
// matches an explicit null but not an unset field; use Absent for both.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// Absent matches records where the field is unset or null.
type Absent struct {
	Field string
}

func (Absent) predicateNode() {}

// Live matches records that are not soft-deleted: the deletion marker is
// unset, null, false, 0, an empty array or object, or a blank string.
type Live struct{}

func (Live) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty Predicates slice is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All combines predicates into one, skipping nils. It returns nil when
// nothing is left and the single predicate when only one is.
func All(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
