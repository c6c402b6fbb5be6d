package projector

import (
	"errors"
	"fmt"
)

// MappingError reports a projection that cannot be completed: a required
// mapped field is absent from the source, or a compute function failed.
type MappingError struct {
	Descriptor string // target descriptor name
	SourceRef  string // "type/id" of the source record
	Field      string // source field for mappings, target key for functions
	Func       string // compute function name, empty for mappings
	Err        error
}

func (e *MappingError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("project %s onto %q: func %q for %q: %v", e.SourceRef, e.Descriptor, e.Func, e.Field, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("project %s onto %q: field %q: %v", e.SourceRef, e.Descriptor, e.Field, e.Err)
	}
	return fmt.Sprintf("project %s onto %q: required field %q is absent", e.SourceRef, e.Descriptor, e.Field)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// IsMappingError reports whether err wraps a MappingError.
func IsMappingError(err error) bool {
	var me *MappingError
	return errors.As(err, &me)
}
