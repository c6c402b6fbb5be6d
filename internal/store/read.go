package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/query"
)

// GetRecord loads one record. Returns a NotFoundError when it does not exist.
func (s *Store) GetRecord(ctx context.Context, typeName, id string) (*ir.Record, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT type, id, fields, version FROM records WHERE type = ? AND id = ?
	`, typeName, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "record", Key: typeName + "/" + id}
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", typeName, id, err)
	}
	return r, nil
}

// RecordExists reports whether a record with this type and id is stored.
func (s *Store) RecordExists(ctx context.Context, typeName, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var one int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT 1 FROM records WHERE type = ? AND id = ?
	`, typeName, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record exists %s/%s: %w", typeName, id, err)
	}
	return true, nil
}

// ListRecords returns every record of a type ordered by id COLLATE BINARY.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListRecords(ctx context.Context, typeName string) ([]*ir.Record, error) {
	return s.QueryRecords(ctx, query.Select{Type: typeName})
}

// QueryRecords returns the records selected by q ordered by id COLLATE
// BINARY. Returns an empty slice (not nil) when none match.
func (s *Store) QueryRecords(ctx context.Context, q query.Select) ([]*ir.Record, error) {
	sqlText, params, err := query.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query records %s: %w", q.Type, err)
	}
	rows, err := s.q(ctx).QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query records %s: %w", q.Type, err)
	}
	defer rows.Close()

	records := []*ir.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("query records %s: %w", q.Type, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records %s: %w", q.Type, err)
	}
	return records, nil
}

// CountRecords returns the number of stored records of a type.
func (s *Store) CountRecords(ctx context.Context, typeName string) (int, error) {
	var n int
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE type = ?`, typeName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records %s: %w", typeName, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*ir.Record, error) {
	var (
		r          ir.Record
		fieldsJSON string
	)
	if err := sc.Scan(&r.Type, &r.ID, &fieldsJSON, &r.Version); err != nil {
		return nil, err
	}
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return nil, err
	}
	r.Fields = fields
	return &r, nil
}
