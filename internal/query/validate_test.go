package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/autosync/internal/ir"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		q    Select
		want []string // substrings; empty means valid
	}{
		{name: "type only", q: Select{Type: "address"}},
		{name: "nested and", q: Select{Type: "address", Filter: And{Predicates: []Predicate{
			Live{},
			And{Predicates: []Predicate{Equals{Field: "n", Value: ir.IRInt(1)}}},
		}}}},
		{name: "missing type", q: Select{}, want: []string{"select: type is required"}},
		{name: "missing field", q: Select{Type: "a", Filter: Absent{}}, want: []string{"filter: field is required"}},
		{name: "missing value", q: Select{Type: "a", Filter: Equals{Field: "x"}}, want: []string{`value is required for field "x"`}},
		{name: "array value", q: Select{Type: "a", Filter: Equals{Field: "x", Value: ir.IRArray{}}}, want: []string{"ir.IRArray cannot be compared"}},
		{name: "object value", q: Select{Type: "a", Filter: Equals{Field: "x", Value: ir.IRObject{}}}, want: []string{"ir.IRObject cannot be compared"}},
		{name: "backslash", q: Select{Type: "a", Filter: Absent{Field: `x\y`}}, want: []string{"quote or backslash"}},
		{name: "nil in and", q: Select{Type: "a", Filter: And{Predicates: []Predicate{Live{}, nil}}}, want: []string{"filter.and[1]: nil predicate"}},
		{
			name: "every problem reported",
			q: Select{Filter: And{Predicates: []Predicate{
				Absent{},
				Equals{Field: "y", Value: ir.IRArray{}},
			}}},
			want: []string{"type is required", "filter.and[0]: field is required", "filter.and[1]: field \"y\""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			if len(tt.want) == 0 {
				assert.NoError(t, err)
				return
			}
			for _, w := range tt.want {
				assert.ErrorContains(t, err, w)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	r := ir.NewRecord("address", ir.IRObject{
		"city":             ir.IRString("Berlin"),
		"n":                ir.IRInt(1),
		"note":             ir.IRNull{},
		ir.SoftDeleteField: ir.IRString(" \t"),
	})

	assert.True(t, Matches(nil, r))
	assert.False(t, Matches(nil, nil))
	assert.True(t, Matches(Live{}, r))
	assert.True(t, Matches(Equals{Field: "city", Value: ir.IRString("Berlin")}, r))
	assert.False(t, Matches(Equals{Field: "n", Value: ir.IRString("1")}, r))
	assert.True(t, Matches(Equals{Field: "note", Value: ir.IRNull{}}, r))
	assert.False(t, Matches(Equals{Field: "missing", Value: ir.IRNull{}}, r))
	assert.True(t, Matches(Absent{Field: "note"}, r))
	assert.True(t, Matches(Absent{Field: "missing"}, r))
	assert.False(t, Matches(Absent{Field: "city"}, r))
	assert.True(t, Matches(And{}, r))
	assert.False(t, Matches(And{Predicates: []Predicate{Live{}, Absent{Field: "city"}}}, r))

	r.Set(ir.SoftDeleteField, ir.IRString("2024-01-01"))
	assert.False(t, Matches(Live{}, r))
}
