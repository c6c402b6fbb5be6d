package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/autosync/internal/ir"
)

// Validate checks that a query can be compiled. Every problem is reported,
// joined into one error.
func Validate(q Select) error {
	v := &validator{}
	if q.Type == "" {
		v.addError("select: type is required")
	}
	v.validatePredicate(q.Filter, "filter")
	return errors.Join(v.errs...)
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validatePredicate(p Predicate, path string) {
	switch pred := p.(type) {
	case nil, Live:
	case Equals:
		v.validateField(pred.Field, path)
		switch pred.Value.(type) {
		case ir.IRString, ir.IRInt, ir.IRBool, ir.IRNull:
		case nil:
			v.addError("%s: value is required for field %q", path, pred.Field)
		default:
			v.addError("%s: field %q: %T cannot be compared (want string, int, bool or null)", path, pred.Field, pred.Value)
		}
	case Absent:
		v.validateField(pred.Field, path)
	case And:
		for i, sub := range pred.Predicates {
			if sub == nil {
				v.addError("%s.and[%d]: nil predicate", path, i)
				continue
			}
			v.validatePredicate(sub, fmt.Sprintf("%s.and[%d]", path, i))
		}
	default:
		v.addError("%s: unsupported predicate type %T", path, p)
	}
}

// validateField rejects names that cannot be quoted in a JSON path.
func (v *validator) validateField(field, path string) {
	if field == "" {
		v.addError("%s: field is required", path)
		return
	}
	if strings.ContainsAny(field, "\"\\") {
		v.addError("%s: field %q contains a quote or backslash", path, field)
	}
}
