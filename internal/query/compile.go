package query

import (
	"fmt"
	"strings"

	"github.com/roach88/autosync/internal/ir"
)

// Compile converts a query to parameterized SQL over the records table.
// Returns (sql, params, error). The selected columns are type, id, fields
// and version, in that order.
//
// Every query includes ORDER BY id COLLATE BINARY. Values and JSON paths
// are never interpolated.
func Compile(q Select) (string, []any, error) {
	if err := Validate(q); err != nil {
		return "", nil, err
	}

	where := "type = ?"
	params := []any{q.Type}
	if q.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf("SELECT type, id, fields, version FROM records WHERE %s ORDER BY %s",
		where, stableOrderKey())
	return sql, params, nil
}

// stableOrderKey returns the ORDER BY clause shared by every query.
func stableOrderKey() string {
	return "id COLLATE BINARY ASC"
}

// jsonPath quotes a field name as a JSON path member. Validate has already
// rejected names with quotes or backslashes.
func jsonPath(field string) string {
	return `$."` + field + `"`
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		return compileEquals(pred)
	case Absent:
		path := jsonPath(pred.Field)
		return "(json_type(fields, ?) IS NULL OR json_type(fields, ?) = 'null')", []any{path, path}, nil
	case Live:
		path := jsonPath(ir.SoftDeleteField)
		sql := "(json_type(fields, ?) IS NULL" +
			" OR json_type(fields, ?) IN ('null', 'false')" +
			" OR (json_type(fields, ?) = 'integer' AND json_extract(fields, ?) = 0)" +
			" OR (json_type(fields, ?) = 'text' AND trim(json_extract(fields, ?), ?) = '')" +
			" OR (json_type(fields, ?) IN ('array', 'object') AND json_extract(fields, ?) IN ('[]', '{}')))"
		return sql, []any{path, path, path, path, path, path, ir.BlankChars, path, path}, nil
	case And:
		return compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals checks the JSON type before the value so that a string
// never equals a number and booleans never equal 0 or 1.
func compileEquals(eq Equals) (string, []any, error) {
	path := jsonPath(eq.Field)
	switch val := eq.Value.(type) {
	case ir.IRString:
		return "(json_type(fields, ?) = 'text' AND json_extract(fields, ?) = ?)", []any{path, path, string(val)}, nil
	case ir.IRInt:
		return "(json_type(fields, ?) = 'integer' AND json_extract(fields, ?) = ?)", []any{path, path, int64(val)}, nil
	case ir.IRBool:
		want := "false"
		if val {
			want = "true"
		}
		return "json_type(fields, ?) = ?", []any{path, want}, nil
	case ir.IRNull:
		return "json_type(fields, ?) = 'null'", []any{path}, nil
	default:
		return "", nil, fmt.Errorf("unsupported value type for field %q: %T", eq.Field, eq.Value)
	}
}

// compileAnd compiles an And predicate to a conjunction.
func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // vacuous truth
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}
