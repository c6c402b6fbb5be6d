// Package buddy manages the one-to-one join records ("buddy links") that
// pair a record with its counterpart in the other representation.
package buddy

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/store"
)

// DuplicateLinkError reports an attempt to link a record that already has a
// link of the same type.
type DuplicateLinkError struct {
	LinkType string
	Source   string // "type/id"
	Target   string // "type/id"
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("link %s between %s and %s: one side is already linked", e.LinkType, e.Source, e.Target)
}

// IsDuplicateLink reports whether err wraps a DuplicateLinkError.
func IsDuplicateLink(err error) bool {
	var de *DuplicateLinkError
	return errors.As(err, &de)
}

// Manager creates, follows and removes buddy links.
type Manager struct {
	store *store.Store
	reg   *descriptor.Registry
}

// NewManager creates a Manager over st, resolving related names through reg.
func NewManager(st *store.Store, reg *descriptor.Registry) *Manager {
	return &Manager{store: st, reg: reg}
}

// Create links source and target under the pair's link type. Both records
// must already be stored.
func (m *Manager) Create(ctx context.Context, pair descriptor.Pair, source, target *ir.Record) (*store.Link, error) {
	if source.ID == "" || target.ID == "" {
		return nil, fmt.Errorf("create link %s: both records must be saved first", pair.Source.Link.Name)
	}
	l := &store.Link{
		LinkType: pair.Source.Link.Name,
		A:        store.LinkRef{Field: pair.Source.FieldName(), Type: source.Type, ID: source.ID},
		B:        store.LinkRef{Field: pair.Target.FieldName(), Type: target.Type, ID: target.ID},
	}
	if err := m.store.InsertLink(ctx, l); err != nil {
		if errors.Is(err, store.ErrDuplicateLink) {
			return nil, &DuplicateLinkError{LinkType: l.LinkType, Source: source.Ref(), Target: target.Ref()}
		}
		return nil, err
	}
	return l, nil
}

// FindBySource follows relatedName from source to its link. A missing link
// is reported through found=false, not as an error.
func (m *Manager) FindBySource(ctx context.Context, source *ir.Record, relatedName string) (link *store.Link, found bool, err error) {
	if source.ID == "" {
		return nil, false, nil
	}
	lt, end, err := m.reg.RelatedEnd(source.Type, relatedName)
	if err != nil {
		return nil, false, err
	}
	l, err := m.store.FindLink(ctx, lt.Name, end.Field, source.ID)
	if store.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// ResolveTarget loads the record at the link end named fieldName.
// Returns a store.NotFoundError when the record is gone.
func (m *Manager) ResolveTarget(ctx context.Context, link *store.Link, fieldName string) (*ir.Record, error) {
	end, ok := link.End(fieldName)
	if !ok {
		return nil, fmt.Errorf("link %s has no end %q", link.LinkType, fieldName)
	}
	return m.store.GetRecord(ctx, end.Type, end.ID)
}

// Delete removes the link only. A link already removed together with one of
// its records is not an error.
func (m *Manager) Delete(ctx context.Context, link *store.Link) error {
	if err := m.store.DeleteLink(ctx, link.ID); err != nil && !store.IsNotFound(err) {
		return err
	}
	return nil
}
