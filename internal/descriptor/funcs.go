package descriptor

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/autosync/internal/ir"
)

// Builtin compute function names, always registered. copy, concat,
// coalesce and const take their parameters from the entry's args.
const (
	FuncNow      = "now"
	FuncNull     = "null"
	FuncCopy     = "copy"
	FuncConcat   = "concat"
	FuncCoalesce = "coalesce"
	FuncConst    = "const"
)

// FuncFactory builds a ComputeFunc from the args of a fields_funcs entry.
type FuncFactory func(args []ir.IRValue) (ComputeFunc, error)

// Now is the clock used by the "now" builtin. Tests replace it.
var Now = func() time.Time { return time.Now().UTC() }

func registerBuiltins(r *Registry) {
	r.funcs[FuncNow] = func(*ir.Record) (ir.IRValue, error) {
		return ir.IRString(Now().Format(time.RFC3339)), nil
	}
	r.volatile[FuncNow] = true

	r.funcs[FuncNull] = func(*ir.Record) (ir.IRValue, error) {
		return ir.IRNull{}, nil
	}

	r.factories[FuncCopy] = func(args []ir.IRValue) (ComputeFunc, error) {
		fields, err := fieldArgs(args)
		if err != nil {
			return nil, err
		}
		if len(fields) != 1 {
			return nil, fmt.Errorf("copy takes exactly one field, got %d", len(fields))
		}
		return Copy(fields[0]), nil
	}
	r.factories[FuncConcat] = func(args []ir.IRValue) (ComputeFunc, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("concat takes a separator and at least one field")
		}
		sep, ok := args[0].(ir.IRString)
		if !ok {
			return nil, fmt.Errorf("concat separator must be a string, got %T", args[0])
		}
		fields, err := fieldArgs(args[1:])
		if err != nil {
			return nil, err
		}
		return Concat(string(sep), fields...), nil
	}
	r.factories[FuncCoalesce] = func(args []ir.IRValue) (ComputeFunc, error) {
		fields, err := fieldArgs(args)
		if err != nil {
			return nil, err
		}
		return Coalesce(fields...), nil
	}
	r.factories[FuncConst] = func(args []ir.IRValue) (ComputeFunc, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("const takes exactly one value, got %d", len(args))
		}
		return Const(args[0]), nil
	}
}

// fieldArgs checks that args are one or more non-empty field names.
func fieldArgs(args []ir.IRValue) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("want at least one field name")
	}
	fields := make([]string, len(args))
	for i, a := range args {
		s, ok := a.(ir.IRString)
		if !ok || s == "" {
			return nil, fmt.Errorf("args[%d]: want a field name, got %s", i, describeArg(a))
		}
		fields[i] = string(s)
	}
	return fields, nil
}

func describeArg(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	return string(b)
}

// Copy returns a function that reads field from the source, yielding null
// when the field is not stored.
func Copy(field string) ComputeFunc {
	return func(src *ir.Record) (ir.IRValue, error) {
		v, ok := src.Get(field)
		if !ok {
			return ir.IRNull{}, nil
		}
		return v, nil
	}
}

// Concat joins the string values of fields with sep. Null and missing
// fields are skipped.
func Concat(sep string, fields ...string) ComputeFunc {
	return func(src *ir.Record) (ir.IRValue, error) {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			v, ok := src.Get(f)
			if !ok || ir.IsNull(v) {
				continue
			}
			if s, isString := v.(ir.IRString); isString {
				if s == "" {
					continue
				}
				parts = append(parts, string(s))
				continue
			}
			b, err := ir.MarshalCanonical(v)
			if err != nil {
				return nil, err
			}
			parts = append(parts, string(b))
		}
		return ir.IRString(strings.Join(parts, sep)), nil
	}
}

// Coalesce returns the first non-null value among fields, or null.
func Coalesce(fields ...string) ComputeFunc {
	return func(src *ir.Record) (ir.IRValue, error) {
		for _, f := range fields {
			if v, ok := src.Get(f); ok && !ir.IsNull(v) {
				return v, nil
			}
		}
		return ir.IRNull{}, nil
	}
}

// Const returns a function that always yields v.
func Const(v ir.IRValue) ComputeFunc {
	return func(*ir.Record) (ir.IRValue, error) {
		return v, nil
	}
}
