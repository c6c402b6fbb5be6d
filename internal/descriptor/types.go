package descriptor

import (
	"fmt"
	"slices"

	"github.com/roach88/autosync/internal/ir"
)

// Identity policies for entity types.
const (
	// IdentityGenerated means the store assigns the primary key on first
	// save, so "has a primary key" implies "exists in storage".
	IdentityGenerated = "generated"

	// IdentityAssigned means callers set the primary key before the first
	// save; existence must be checked against the store.
	IdentityAssigned = "assigned"
)

// EntityType is one registered representation (legacy or new).
type EntityType struct {
	Name string

	// Fields is the declared schema. A nil schema means the type is
	// schemaless: a field is present only when the record stores it.
	Fields []string

	// Identity is IdentityGenerated (default) or IdentityAssigned.
	Identity string
}

// HasSchema reports whether the type declares its fields.
func (t *EntityType) HasSchema() bool {
	return t.Fields != nil
}

// Has reports whether the type declares field.
func (t *EntityType) Has(field string) bool {
	return slices.Contains(t.Fields, field)
}

// AssignedIdentity reports whether primary keys are set before creation.
func (t *EntityType) AssignedIdentity() bool {
	return t.Identity == IdentityAssigned
}

// Lookup is the tri-state field lookup used by the projector:
// Present(value), Absent, or an error when the question is malformed.
//
// For a type with a schema, a declared field is present even when the
// record has no value stored for it yet (the value is then IRNull).
func (t *EntityType) Lookup(r *ir.Record, field string) (ir.Lookup, error) {
	if r == nil {
		return ir.Lookup{}, fmt.Errorf("lookup %q: nil record", field)
	}
	if r.Type != t.Name {
		return ir.Lookup{}, fmt.Errorf("lookup %q: record %s is not of type %q", field, r.Ref(), t.Name)
	}

	v, stored := r.Fields[field]
	if t.HasSchema() {
		if !t.Has(field) {
			return ir.AbsentValue(), nil
		}
		return ir.PresentValue(v), nil
	}
	if !stored {
		return ir.AbsentValue(), nil
	}
	return ir.PresentValue(v), nil
}

// LinkEnd is one side of a buddy link type.
type LinkEnd struct {
	// Field is the end's name inside the link (field_name_in_buddy).
	Field string `yaml:"field" json:"field"`

	// Type is the entity type this end points at.
	Type string `yaml:"type" json:"type"`

	// RelatedName is how a record of Type reaches the link
	// (related_name_in_buddy). Defaults to the link type name.
	RelatedName string `yaml:"related_name,omitempty" json:"related_name,omitempty"`
}

// LinkType is a one-to-one join record type between two entity types.
type LinkType struct {
	Name string
	Ends [2]LinkEnd
}

// End returns the end named field.
func (l *LinkType) End(field string) (*LinkEnd, bool) {
	for i := range l.Ends {
		if l.Ends[i].Field == field {
			return &l.Ends[i], true
		}
	}
	return nil, false
}

// Other returns the end opposite to field.
func (l *LinkType) Other(field string) (*LinkEnd, bool) {
	switch field {
	case l.Ends[0].Field:
		return &l.Ends[1], true
	case l.Ends[1].Field:
		return &l.Ends[0], true
	default:
		return nil, false
	}
}

// ComputeFunc derives a target field value from a source record.
type ComputeFunc func(src *ir.Record) (ir.IRValue, error)

// FieldMapping is one source-field → target-field copy.
type FieldMapping struct {
	Source string
	Target string
}

// BoundFunc is a fields_funcs entry with its function resolved.
type BoundFunc struct {
	Key       string
	Name      string
	Fn        ComputeFunc
	Optional  bool
	DependsOn string // source field whose absence skips an optional func
	Volatile  bool   // output may differ between calls (clocks, counters)
}

// Resolved is a descriptor with every name replaced by a handle.
// It is immutable once built.
type Resolved struct {
	Name     string
	Type     *EntityType
	Link     *LinkType
	End      *LinkEnd // this descriptor's end of Link
	Mapping  []FieldMapping
	Optional map[string]bool
	Funcs    []BoundFunc
	Scope    Scope
	ReadOnly bool
}

// RelatedName returns related_name_in_buddy for this side.
func (r *Resolved) RelatedName() string {
	return r.End.RelatedName
}

// FieldName returns field_name_in_buddy for this side.
func (r *Resolved) FieldName() string {
	return r.End.Field
}

// IsOptional reports whether a source field may be absent.
func (r *Resolved) IsOptional(field string) bool {
	return r.Optional[field]
}

// Pair is the (source, target) descriptor pair used when a record of
// Source.Type is written.
type Pair struct {
	Source *Resolved
	Target *Resolved

	// Excluded lists entity types that share Source's handling but must
	// never propagate.
	Excluded map[string]bool
}

// Excludes reports whether writes of typeName are kept from propagating.
func (p Pair) Excludes(typeName string) bool {
	return p.Excluded[typeName]
}
