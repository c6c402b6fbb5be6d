package descriptor

import (
	"fmt"

	"github.com/roach88/autosync/internal/query"
)

// Scope names the query scope a descriptor reads its records through
// (the model_manager of a descriptor).
type Scope string

const (
	// ScopeObjects sees every stored record (default).
	ScopeObjects Scope = "objects"

	// ScopeActive hides soft-deleted records.
	ScopeActive Scope = "active"
)

// ValidateScope checks a model_manager value.
// Empty is valid and defaults to ScopeObjects.
func ValidateScope(name string) error {
	switch Scope(name) {
	case ScopeObjects, ScopeActive, "":
		return nil
	default:
		return fmt.Errorf("invalid model manager %q: must be %s or %s", name, ScopeObjects, ScopeActive)
	}
}

// NormalizeScope returns the scope with the default applied.
func NormalizeScope(name string) Scope {
	if name == "" {
		return ScopeObjects
	}
	return Scope(name)
}

// Predicate returns the filter that selects the records visible through
// the scope, or nil when every record is visible.
func (s Scope) Predicate() query.Predicate {
	if s == ScopeActive {
		return query.Live{}
	}
	return nil
}
