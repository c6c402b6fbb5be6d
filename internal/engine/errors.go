package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/autosync/internal/buddy"
	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/projector"
	"github.com/roach88/autosync/internal/store"
)

// SyncError represents a failure while propagating a write to its
// counterpart.
//
// SyncError includes structured fields for diagnostics: the record that
// triggered propagation, the hook it failed in and the chain it belongs to.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Message is a human-readable description.
	Message string

	// Ref is the "type/id" of the record being written.
	Ref string

	// Hook is the lifecycle hook that failed ("post_save", "pre_delete", ...).
	Hook string

	// Chain identifies the top-level write the failure belongs to.
	Chain string

	// Err is the underlying cause.
	Err error
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeMapping indicates a required source field was absent or a
	// compute function failed.
	ErrCodeMapping SyncErrorCode = "MAPPING"

	// ErrCodeDescriptorResolution indicates the descriptor pair for a type
	// could not be resolved.
	ErrCodeDescriptorResolution SyncErrorCode = "DESCRIPTOR_RESOLUTION"

	// ErrCodeUnknownType indicates a name missing from the registry.
	ErrCodeUnknownType SyncErrorCode = "UNKNOWN_TYPE"

	// ErrCodeDuplicateLink indicates one side was already linked.
	ErrCodeDuplicateLink SyncErrorCode = "DUPLICATE_LINK"

	// ErrCodeNotFound indicates a linked counterpart is missing.
	ErrCodeNotFound SyncErrorCode = "NOT_FOUND"

	// ErrCodeCycleDetected indicates the same source would propagate twice
	// within one chain.
	ErrCodeCycleDetected SyncErrorCode = "CYCLE_DETECTED"

	// ErrCodeInternal covers storage and other unexpected failures.
	ErrCodeInternal SyncErrorCode = "INTERNAL"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Hook != "" && e.Chain != "" {
		return fmt.Sprintf("%s: %s (record=%s, hook=%s, chain=%s)", e.Code, msg, e.Ref, e.Hook, e.Chain)
	}
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s (record=%s)", e.Code, msg, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// codeFor maps an underlying error onto a SyncErrorCode.
func codeFor(err error) SyncErrorCode {
	var se *SyncError
	switch {
	case errors.As(err, &se):
		return se.Code
	case projector.IsMappingError(err):
		return ErrCodeMapping
	case descriptor.IsResolutionError(err):
		return ErrCodeDescriptorResolution
	case descriptor.IsUnknownType(err):
		return ErrCodeUnknownType
	case buddy.IsDuplicateLink(err):
		return ErrCodeDuplicateLink
	case store.IsNotFound(err):
		return ErrCodeNotFound
	default:
		return ErrCodeInternal
	}
}

// wrapSyncError attaches record, hook and chain context to err. An error
// that already is a SyncError is filled in, not wrapped twice.
func wrapSyncError(err error, ref, hook, chain string) error {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		if se.Ref == "" {
			se.Ref = ref
		}
		if se.Hook == "" {
			se.Hook = hook
		}
		if se.Chain == "" {
			se.Chain = chain
		}
		return err
	}
	return &SyncError{Code: codeFor(err), Ref: ref, Hook: hook, Chain: chain, Err: err}
}

// CodeOf returns the SyncErrorCode carried by err, or "" when err is not a
// SyncError.
func CodeOf(err error) SyncErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool {
	return CodeOf(err) == ErrCodeCycleDetected
}

// IsMappingError returns true if propagation failed on a field mapping.
func IsMappingError(err error) bool {
	return CodeOf(err) == ErrCodeMapping || projector.IsMappingError(err)
}

// NewCycleError creates a SyncError for a repeated propagation.
func NewCycleError(chain, ref, targetDescriptor string) *SyncError {
	return &SyncError{
		Code:    ErrCodeCycleDetected,
		Message: fmt.Sprintf("%s would propagate onto %q twice in one chain", ref, targetDescriptor),
		Ref:     ref,
		Chain:   chain,
	}
}
