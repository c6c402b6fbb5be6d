package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/query"
)

func ids(records []*ir.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

// TestQueryRecords_AgreesWithMatches runs each predicate in SQL and in
// memory over the same rows.
func TestQueryRecords_AgreesWithMatches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	const deleted = ir.SoftDeleteField
	saveTestRecord(t, s, "address", ir.IRObject{"city": ir.IRString("Berlin"), "n": ir.IRInt(1), deleted: ir.IRNull{}})
	saveTestRecord(t, s, "address", ir.IRObject{"city": ir.IRString("Hamburg"), "n": ir.IRString("1"), deleted: ir.IRString("  ")})
	saveTestRecord(t, s, "address", ir.IRObject{"city": ir.IRString("Berlin"), "flag": ir.IRBool(true), deleted: ir.IRString("2024-01-01")})
	saveTestRecord(t, s, "address", ir.IRObject{"n": ir.IRInt(1), "flag": ir.IRBool(false), deleted: ir.IRBool(false)})
	saveTestRecord(t, s, "address", ir.IRObject{"city": ir.IRNull{}, deleted: ir.IRBool(true)})
	saveTestRecord(t, s, "address", ir.IRObject{deleted: ir.IRString("\t\n")})
	saveTestRecord(t, s, "address", ir.IRObject{deleted: ir.IRInt(0)})
	saveTestRecord(t, s, "legacy_address", ir.IRObject{"city": ir.IRString("Berlin")})
	saveTestRecord(t, s, "address", ir.IRObject{deleted: ir.IRArray{}})
	saveTestRecord(t, s, "address", ir.IRObject{deleted: ir.IRObject{"by": ir.IRString("ops")}})

	all, err := s.ListRecords(ctx, "address")
	require.NoError(t, err)
	require.Len(t, all, 9)

	tests := []struct {
		name   string
		filter query.Predicate
		want   []string
	}{
		{"no filter", nil, []string{"id-0001", "id-0002", "id-0003", "id-0004", "id-0005", "id-0006", "id-0007", "id-0009", "id-0010"}},
		{"live", query.Live{}, []string{"id-0001", "id-0002", "id-0004", "id-0006", "id-0007", "id-0009"}},
		{"string equals", query.Equals{Field: "city", Value: ir.IRString("Berlin")}, []string{"id-0001", "id-0003"}},
		{"int equals", query.Equals{Field: "n", Value: ir.IRInt(1)}, []string{"id-0001", "id-0004"}},
		{"string is not int", query.Equals{Field: "n", Value: ir.IRString("1")}, []string{"id-0002"}},
		{"bool true", query.Equals{Field: "flag", Value: ir.IRBool(true)}, []string{"id-0003"}},
		{"bool false", query.Equals{Field: "flag", Value: ir.IRBool(false)}, []string{"id-0004"}},
		{"explicit null", query.Equals{Field: "city", Value: ir.IRNull{}}, []string{"id-0005"}},
		{"absent", query.Absent{Field: "city"}, []string{"id-0004", "id-0005", "id-0006", "id-0007", "id-0009", "id-0010"}},
		{"and", query.And{Predicates: []query.Predicate{query.Live{}, query.Equals{Field: "city", Value: ir.IRString("Berlin")}}}, []string{"id-0001"}},
		{"empty and", query.And{}, []string{"id-0001", "id-0002", "id-0003", "id-0004", "id-0005", "id-0006", "id-0007", "id-0009", "id-0010"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryRecords(ctx, query.Select{Type: "address", Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got), "sql")
			assert.Equal(t, tt.want, ids(query.Filter(tt.filter, all)), "in memory")
		})
	}
}

func TestQueryRecords_InTransaction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.SaveRecord(ctx, ir.NewRecord("address", ir.IRObject{"city": ir.IRString("Bonn")})))
		got, err := s.QueryRecords(ctx, query.Select{Type: "address", Filter: query.Live{}})
		require.NoError(t, err)
		assert.Len(t, got, 1, "uncommitted writes are visible inside the transaction")
		return nil
	})
	require.NoError(t, err)
}

func TestQueryRecords_InvalidQuery(t *testing.T) {
	s := createTestStore(t)

	_, err := s.QueryRecords(context.Background(), query.Select{Filter: query.Absent{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type is required")
	assert.Contains(t, err.Error(), "field is required")
}
