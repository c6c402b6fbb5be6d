package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/autosync/internal/engine"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/projector"
	"github.com/roach88/autosync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d: %s %s/%s\n", i+1, ev.Step, ev.Op, ev.Type, ev.ID)
		}
	}

	return buf.String()
}

// AssertionContext provides what assertions are evaluated against.
type AssertionContext struct {
	Ctx    context.Context
	Engine *engine.Engine

	// Refs maps scenario aliases to stored records.
	Refs map[string]RecordRef

	// ReadOnlyUpdates holds aliases whose updates are not verified because
	// the record's descriptor is read-only.
	ReadOnlyUpdates map[string]bool
}

// RecordRef locates a stored record.
type RecordRef struct {
	Type string
	ID   string
}

func (r RecordRef) String() string {
	return r.Type + "/" + r.ID
}

// load fetches the record behind an alias.
func (actx *AssertionContext) load(alias string) (*ir.Record, error) {
	ref, ok := actx.Refs[alias]
	if !ok {
		return nil, fmt.Errorf("ref %q was never bound", alias)
	}
	return actx.Engine.Store().GetRecord(actx.Ctx, ref.Type, ref.ID)
}

// assertInSync checks the record behind the alias against its counterpart.
func assertInSync(actx *AssertionContext, a Assertion) error {
	if actx.ReadOnlyUpdates[a.Ref] {
		return nil
	}
	rec, err := actx.load(a.Ref)
	if err != nil {
		return &AssertionError{Type: AssertInSync, Expected: fmt.Sprintf("%s stored", a.Ref), Actual: err.Error()}
	}
	return CheckInSync(actx.Ctx, actx.Engine, rec)
}

// assertLinked checks whether the alias has a counterpart.
func assertLinked(actx *AssertionContext, a Assertion, want bool) error {
	rec, err := actx.load(a.Ref)
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s stored", a.Ref), Actual: err.Error()}
	}
	m, found, err := FindCounterpart(actx.Ctx, actx.Engine, rec)
	if err != nil {
		return err
	}
	if found == want {
		return nil
	}
	if want {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s linked", a.Ref), Actual: "no buddy link"}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s unlinked", a.Ref),
		Actual:   fmt.Sprintf("linked to %s", m.Record.Ref()),
	}
}

// assertMissing checks that the record behind the alias is gone.
func assertMissing(actx *AssertionContext, a Assertion) error {
	_, err := actx.load(a.Ref)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return &AssertionError{
		Type:     AssertMissing,
		Expected: fmt.Sprintf("%s (%s) deleted", a.Ref, actx.Refs[a.Ref]),
		Actual:   "still stored",
	}
}

// assertCount checks the number of stored records of an entity type or
// links of a link type.
func assertCount(actx *AssertionContext, a Assertion) error {
	var (
		n    int
		what string
		err  error
	)
	if a.Entity != "" {
		what = "records of " + a.Entity
		n, err = actx.Engine.Store().CountRecords(actx.Ctx, a.Entity)
	} else {
		what = "links of " + a.Link
		var links []*store.Link
		links, err = actx.Engine.Store().ListLinks(actx.Ctx, a.Link)
		n = len(links)
	}
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertFields checks the stored fields of the alias (subset semantics).
func assertFields(actx *AssertionContext, a Assertion) error {
	rec, err := actx.load(a.Ref)
	if err != nil {
		return &AssertionError{Type: AssertFields, Expected: fmt.Sprintf("%s stored", a.Ref), Actual: err.Error()}
	}
	want, err := ir.ObjectFromMap(a.Expect)
	if err != nil {
		return fmt.Errorf("fields assertion on %q: %w", a.Ref, err)
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := rec.Get(k)
		if !ok {
			return &AssertionError{
				Type:     AssertFields,
				Expected: fmt.Sprintf("%s.%s = %s", a.Ref, k, canonical(want[k])),
				Actual:   "field not stored",
			}
		}
		if !ir.Equal(got, want[k]) {
			return &AssertionError{
				Type:     AssertFields,
				Expected: fmt.Sprintf("%s.%s = %s", a.Ref, k, canonical(want[k])),
				Actual:   canonical(got),
			}
		}
	}
	return nil
}

// assertIdempotent projects the record behind the alias under its sync pair,
// reads it again and projects the copy. Both digests must match; volatile
// compute functions are not part of the digest.
func assertIdempotent(actx *AssertionContext, a Assertion) error {
	rec, err := actx.load(a.Ref)
	if err != nil {
		return &AssertionError{Type: AssertIdempotent, Expected: fmt.Sprintf("%s stored", a.Ref), Actual: err.Error()}
	}
	pair, err := actx.Engine.Registry().PairFor(rec.Type)
	if err != nil {
		return err
	}
	first, err := projector.Digest(rec, pair)
	if err != nil {
		return err
	}

	again, err := actx.load(a.Ref)
	if err != nil {
		return err
	}
	second, err := projector.Digest(again, pair)
	if err != nil {
		return err
	}
	if first != second {
		return &AssertionError{
			Type:     AssertIdempotent,
			Expected: fmt.Sprintf("%s projects to %s", a.Ref, first),
			Actual:   second,
		}
	}
	return nil
}

// assertTraceCount checks the number of trace events with the assertion's
// op, restricted to an entity type when one is given.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if string(ev.Op) == a.Op && (a.Entity == "" || ev.Type == a.Entity) {
			count++
		}
	}

	if count != a.Count {
		what := a.Op
		if a.Entity != "" {
			what += " " + a.Entity
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		if a.Type != AssertTraceCount && (actx == nil || actx.Engine == nil) {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s requires an engine", i, a.Type))
			continue
		}

		switch a.Type {
		case AssertInSync:
			err = assertInSync(actx, a)
		case AssertLinked:
			err = assertLinked(actx, a, true)
		case AssertUnlinked:
			err = assertLinked(actx, a, false)
		case AssertMissing:
			err = assertMissing(actx, a)
		case AssertCount:
			err = assertCount(actx, a)
		case AssertFields:
			err = assertFields(actx, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertIdempotent:
			err = assertIdempotent(actx, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
