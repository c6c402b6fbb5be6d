package ir

import (
	"fmt"
	"strings"
)

// SoftDeleteField is the field that marks a record as soft-deleted when set
// to anything other than null, "" or false.
const SoftDeleteField = "deleted_date"

// BlankChars are trimmed before deciding whether a string marker is empty.
const BlankChars = " \t\n\v\f\r"

// Record is one stored instance of an entity type: a legacy row or its new
// counterpart. The engine treats both representations the same way.
type Record struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Fields  IRObject `json:"fields"`
	Version int64    `json:"version"` // maintained by the store, bumped on every write
}

// NewRecord creates an unsaved record of the given type.
func NewRecord(typeName string, fields IRObject) *Record {
	return &Record{Type: typeName, Fields: fields.Clone()}
}

// Get returns the raw value stored under field.
func (r *Record) Get(field string) (IRValue, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// Set assigns a field value, allocating the field map if needed.
func (r *Record) Set(field string, v IRValue) {
	if r.Fields == nil {
		r.Fields = IRObject{}
	}
	r.Fields[field] = v
}

// Assign copies every entry of values onto the record.
func (r *Record) Assign(values IRObject) {
	for k, v := range values {
		r.Set(k, v)
	}
}

// SoftDeleted reports whether the record carries a deletion marker. Null,
// false, 0, empty containers and blank strings do not count.
func (r *Record) SoftDeleted() bool {
	v, ok := r.Fields[SoftDeleteField]
	if !ok || IsNull(v) {
		return false
	}
	switch val := v.(type) {
	case IRString:
		return strings.Trim(string(val), BlankChars) != ""
	case IRBool:
		return bool(val)
	case IRInt:
		return val != 0
	case IRArray:
		return len(val) > 0
	case IRObject:
		return len(val) > 0
	default:
		return true
	}
}

// Clone returns a copy of the record that shares no field map with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Fields = r.Fields.Clone()
	return &c
}

// Ref renders "type/id" for logs and error messages.
func (r *Record) Ref() string {
	if r == nil {
		return "<nil>"
	}
	if r.ID == "" {
		return r.Type + "/<unsaved>"
	}
	return r.Type + "/" + r.ID
}

func (r *Record) String() string {
	return fmt.Sprintf("%s(v%d)", r.Ref(), r.Version)
}

// LookupState is the outcome of a field lookup.
type LookupState int

const (
	// Absent means the record's type does not have the field.
	Absent LookupState = iota
	// Present means the field exists; its value may still be IRNull.
	Present
)

func (s LookupState) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Lookup is the result of asking whether a record has a field.
// A lookup that cannot be answered is reported through an error instead.
type Lookup struct {
	State LookupState
	Value IRValue
}

// PresentValue builds a Present lookup.
func PresentValue(v IRValue) Lookup {
	if v == nil {
		v = IRNull{}
	}
	return Lookup{State: Present, Value: v}
}

// AbsentValue builds an Absent lookup.
func AbsentValue() Lookup {
	return Lookup{State: Absent}
}
