package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/autosync/internal/ir"
)

// createTestStore opens a store in a temp dir with sequential ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(NewSequenceGenerator("id")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// saveTestRecord stores a record and returns it.
func saveTestRecord(t *testing.T, s *Store, typeName string, fields ir.IRObject) *ir.Record {
	t.Helper()
	r := ir.NewRecord(typeName, fields)
	if err := s.SaveRecord(context.Background(), r); err != nil {
		t.Fatalf("SaveRecord() failed: %v", err)
	}
	return r
}
