package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LinkRef is one end of a stored buddy link.
type LinkRef struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	ID    string `json:"id"`
}

// Link is a stored buddy link. A and B are ordered by field name.
type Link struct {
	ID       string  `json:"id"`
	LinkType string  `json:"link_type"`
	A        LinkRef `json:"a"`
	B        LinkRef `json:"b"`
}

// End returns the end named field.
func (l *Link) End(field string) (LinkRef, bool) {
	switch field {
	case l.A.Field:
		return l.A, true
	case l.B.Field:
		return l.B, true
	default:
		return LinkRef{}, false
	}
}

// normalize orders the ends so that A.Field < B.Field.
func (l *Link) normalize() {
	if l.A.Field > l.B.Field {
		l.A, l.B = l.B, l.A
	}
}

// InsertLink stores a new link, assigning an ID when it has none.
//
// Returns an error wrapping ErrDuplicateLink when either end is already
// linked under the same link type, and a NotFoundError when an end
// references a record that does not exist.
func (s *Store) InsertLink(ctx context.Context, l *Link) error {
	if l.LinkType == "" {
		return fmt.Errorf("insert link: link type is required")
	}
	if l.A.Field == l.B.Field {
		return fmt.Errorf("insert link %s: ends share field %q", l.LinkType, l.A.Field)
	}
	l.normalize()
	if l.ID == "" {
		l.ID = s.NewID()
	}

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO buddy_links (id, link_type, a_field, a_type, a_id, b_field, b_type, b_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.LinkType, l.A.Field, l.A.Type, l.A.ID, l.B.Field, l.B.Type, l.B.ID)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("insert link %s: %w", l.LinkType, ErrDuplicateLink)
	case isForeignKeyViolation(err):
		return fmt.Errorf("insert link %s: %w", l.LinkType,
			&NotFoundError{Kind: "record", Key: l.A.Type + "/" + l.A.ID + " or " + l.B.Type + "/" + l.B.ID})
	default:
		return fmt.Errorf("insert link %s: %w", l.LinkType, err)
	}
}

// FindLink returns the link of linkType whose end named field points at id.
// Returns a NotFoundError when there is none.
func (s *Store) FindLink(ctx context.Context, linkType, field, id string) (*Link, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, link_type, a_field, a_type, a_id, b_field, b_type, b_id
		FROM buddy_links
		WHERE link_type = ? AND ((a_field = ? AND a_id = ?) OR (b_field = ? AND b_id = ?))
	`, linkType, field, id, field, id)

	l, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "link", Key: linkType + "." + field + "=" + id}
	}
	if err != nil {
		return nil, fmt.Errorf("find link %s: %w", linkType, err)
	}
	return l, nil
}

// DeleteLink removes a link by id. Returns a NotFoundError when it does not
// exist, which is the case once either linked record has been deleted.
func (s *Store) DeleteLink(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM buddy_links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete link %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete link %s: %w", id, err)
	}
	if n == 0 {
		return &NotFoundError{Kind: "link", Key: id}
	}
	return nil
}

// ListLinks returns every link of a type ordered by id COLLATE BINARY.
func (s *Store) ListLinks(ctx context.Context, linkType string) ([]*Link, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, link_type, a_field, a_type, a_id, b_field, b_type, b_id
		FROM buddy_links
		WHERE link_type = ?
		ORDER BY id COLLATE BINARY ASC
	`, linkType)
	if err != nil {
		return nil, fmt.Errorf("list links %s: %w", linkType, err)
	}
	defer rows.Close()

	links := []*Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("list links %s: %w", linkType, err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links %s: %w", linkType, err)
	}
	return links, nil
}

func scanLink(sc scanner) (*Link, error) {
	var l Link
	err := sc.Scan(&l.ID, &l.LinkType, &l.A.Field, &l.A.Type, &l.A.ID, &l.B.Field, &l.B.Type, &l.B.ID)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
