package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/engine"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/store"
)

// AmbiguousTargetError is returned when the descriptor describing a
// record's counterpart cannot be determined from the configuration.
type AmbiguousTargetError struct {
	Source     string   // source descriptor name
	Candidates []string // descriptors considered, sorted
}

// Error implements the error interface.
func (e *AmbiguousTargetError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("cannot determine target descriptor for %q: no candidates", e.Source)
	}
	return fmt.Sprintf("cannot determine target descriptor for %q: candidates %s",
		e.Source, strings.Join(e.Candidates, ", "))
}

// Match is a record's counterpart together with the descriptors on both
// sides of the link joining them.
type Match struct {
	Source *descriptor.Resolved // descriptor of the record that was followed
	Target *descriptor.Resolved // descriptor of the counterpart
	Link   *store.Link
	Record *ir.Record // the counterpart
}

// FindTargetDescriptor returns the descriptor that describes the other end
// of source's link. The pair bound to source's entity type wins. Otherwise
// the single non-read-only descriptor on the opposite end is used, and
// zero or several such descriptors yield *AmbiguousTargetError.
func FindTargetDescriptor(reg *descriptor.Registry, source *descriptor.Resolved) (*descriptor.Resolved, error) {
	if pair, err := reg.PairFor(source.Type.Name); err == nil && pair.Source == source {
		return pair.Target, nil
	}

	other, ok := source.Link.Other(source.FieldName())
	if !ok {
		return nil, &AmbiguousTargetError{Source: source.Name}
	}

	var matches []*descriptor.Resolved
	var names []string
	for _, d := range reg.DescriptorsFor(other.Type) {
		if d.Link != source.Link || d.End != other {
			continue
		}
		names = append(names, d.Name)
		if !d.ReadOnly {
			matches = append(matches, d)
		}
	}
	if len(matches) != 1 {
		sort.Strings(names)
		return nil, &AmbiguousTargetError{Source: source.Name, Candidates: names}
	}
	return matches[0], nil
}

// FindCounterpart follows rec's buddy link through every descriptor of its
// entity type. found is false when no descriptor leads to a link.
func FindCounterpart(ctx context.Context, eng *engine.Engine, rec *ir.Record) (m *Match, found bool, err error) {
	for _, d := range eng.Registry().DescriptorsFor(rec.Type) {
		link, ok, err := eng.Links().FindBySource(ctx, rec, d.RelatedName())
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		target, err := FindTargetDescriptor(eng.Registry(), d)
		if err != nil {
			return nil, false, err
		}
		other, err := eng.Links().ResolveTarget(ctx, link, target.FieldName())
		if err != nil {
			return nil, false, err
		}
		return &Match{Source: d, Target: target, Link: link, Record: other}, true, nil
	}
	return nil, false, nil
}

// CheckInSync checks that every mapped field of rec equals the field it
// maps to on rec's counterpart. Mappings of optional fields are skipped
// when either side lacks the field.
func CheckInSync(ctx context.Context, eng *engine.Engine, rec *ir.Record) error {
	m, found, err := FindCounterpart(ctx, eng, rec)
	if err != nil {
		return err
	}
	if !found {
		return &AssertionError{
			Type:     AssertInSync,
			Expected: fmt.Sprintf("%s to have a counterpart", rec.Ref()),
			Actual:   "no buddy link",
		}
	}
	return compareMapped(rec, m)
}

func compareMapped(rec *ir.Record, m *Match) error {
	for _, mp := range m.Target.Mapping {
		got, err := m.Source.Type.Lookup(rec, mp.Source)
		if err != nil {
			return err
		}
		want, err := m.Target.Type.Lookup(m.Record, mp.Target)
		if err != nil {
			return err
		}
		if got.State == ir.Absent || want.State == ir.Absent {
			if m.Target.IsOptional(mp.Source) {
				continue
			}
			return &AssertionError{
				Type:     AssertInSync,
				Expected: fmt.Sprintf("%s.%s and %s.%s present", rec.Ref(), mp.Source, m.Record.Ref(), mp.Target),
				Actual:   fmt.Sprintf("%s, %s", got.State, want.State),
			}
		}
		if !ir.Equal(got.Value, want.Value) {
			return &AssertionError{
				Type:     AssertInSync,
				Expected: fmt.Sprintf("%s.%s = %s", m.Record.Ref(), mp.Target, canonical(got.Value)),
				Actual:   canonical(want.Value),
			}
		}
	}
	return nil
}

func canonical(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
