package descriptor

import (
	"errors"
	"fmt"
)

// UnknownTypeError reports a name missing from the registry.
type UnknownTypeError struct {
	// Kind is what was looked up: "entity type", "link type", "function",
	// "descriptor" or "related name".
	Kind string
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// DescriptorResolutionError reports a descriptor that cannot be resolved to
// concrete handles.
type DescriptorResolutionError struct {
	Descriptor string // descriptor name
	Field      string // offending descriptor field, e.g. "field_name_in_buddy"
	Message    string
	Err        error // underlying cause, often *UnknownTypeError
}

func (e *DescriptorResolutionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("resolve descriptor %q: %s: %s", e.Descriptor, e.Field, msg)
	}
	return fmt.Sprintf("resolve descriptor %q: %s", e.Descriptor, msg)
}

func (e *DescriptorResolutionError) Unwrap() error {
	return e.Err
}

// IsUnknownType reports whether err wraps an UnknownTypeError.
func IsUnknownType(err error) bool {
	var ue *UnknownTypeError
	return errors.As(err, &ue)
}

// IsResolutionError reports whether err wraps a DescriptorResolutionError.
func IsResolutionError(err error) bool {
	var re *DescriptorResolutionError
	return errors.As(err, &re)
}

func resolutionErr(desc, field, msg string, cause error) *DescriptorResolutionError {
	return &DescriptorResolutionError{Descriptor: desc, Field: field, Message: msg, Err: cause}
}
