package store

import (
	"context"
	"fmt"

	"github.com/roach88/autosync/internal/ir"
)

// SaveRecord inserts or updates a record.
//
// A record without an ID gets one from the store's generator. The stored
// version starts at 1 and is bumped on every write; r.ID and r.Version are
// updated in place. Fields are stored as canonical JSON.
func (s *Store) SaveRecord(ctx context.Context, r *ir.Record) error {
	if r == nil || r.Type == "" {
		return fmt.Errorf("save record: record type is required")
	}
	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return fmt.Errorf("save record %s: %w", r.Ref(), err)
	}

	id := r.ID
	if id == "" {
		id = s.NewID()
	}

	var version int64
	err = s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO records (type, id, fields, version)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(type, id) DO UPDATE SET
			fields = excluded.fields,
			version = records.version + 1
		RETURNING version
	`, r.Type, id, fieldsJSON).Scan(&version)
	if err != nil {
		return fmt.Errorf("save record %s/%s: %w", r.Type, id, err)
	}

	r.ID = id
	r.Version = version
	return nil
}

// DeleteRecord removes a record. Links that reference it are removed by the
// foreign key cascade. Returns a NotFoundError when nothing was deleted.
func (s *Store) DeleteRecord(ctx context.Context, typeName, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM records WHERE type = ? AND id = ?`, typeName, id)
	if err != nil {
		return fmt.Errorf("delete record %s/%s: %w", typeName, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %s/%s: %w", typeName, id, err)
	}
	if n == 0 {
		return &NotFoundError{Kind: "record", Key: typeName + "/" + id}
	}
	return nil
}
