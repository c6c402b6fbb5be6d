package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/store"
	"github.com/roach88/autosync/internal/testutil"
)

// The concrete migration scenario: postcode on the source maps to zip_code
// on the target through a buddy link reached as "link".
func TestSynchronize_PostcodeScenario(t *testing.T) {
	te := newPostcodeEngine(t)
	ctx := context.Background()

	src := newSource("10696")
	require.NoError(t, te.Save(ctx, src))

	target := te.counterpart(t, src)
	assert.Equal(t, ir.IRString("10696"), target.Fields["zip_code"])
	assert.Equal(t, 1, te.linkCount(t, testutil.LinkName))

	src.Set("postcode", ir.IRString("99999"))
	require.NoError(t, te.Save(ctx, src))
	assert.Equal(t, ir.IRString("99999"), te.counterpart(t, src).Fields["zip_code"])

	require.NoError(t, te.Delete(ctx, src))

	_, err := te.Store().GetRecord(ctx, target.Type, target.ID)
	assert.True(t, store.IsNotFound(err))
	_, err = te.Store().FindLink(ctx, testutil.LinkName, "source", src.ID)
	assert.True(t, store.IsNotFound(err))
	_, err = te.Store().FindLink(ctx, testutil.LinkName, "target", target.ID)
	assert.True(t, store.IsNotFound(err))
}

func TestSynchronize_Direct(t *testing.T) {
	te := newPostcodeEngine(t)
	ctx := context.Background()
	pair, err := te.Registry().PairFor(testutil.SourceType)
	require.NoError(t, err)

	src := newSource("10696")
	require.NoError(t, te.Save(ctx, src, WithTarget()))

	created, err := te.Synchronize(ctx, src, pair, false)
	require.NoError(t, err)
	assert.Equal(t, testutil.TargetType, created.Type)
	assert.Equal(t, ir.IRString("10696"), created.Fields["zip_code"])

	src.Set("postcode", ir.IRString("80331"))
	updated, err := te.Synchronize(ctx, src, pair, true)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, int64(2), updated.Version, "re-read after persisting")
	assert.Equal(t, ir.IRString("80331"), updated.Fields["zip_code"])
}

func TestSynchronize_CreateOnLinkedSourceIsDuplicate(t *testing.T) {
	te := newPostcodeEngine(t)
	ctx := context.Background()
	pair, err := te.Registry().PairFor(testutil.SourceType)
	require.NoError(t, err)

	src := newSource("10696")
	require.NoError(t, te.Save(ctx, src))

	_, err = te.Synchronize(ctx, src, pair, false)
	require.Error(t, err)
	assert.Equal(t, ErrCodeDuplicateLink, CodeOf(err))
	assert.Equal(t, 1, te.count(t, testutil.TargetType), "second counterpart rolled back")
	assert.Equal(t, 1, te.linkCount(t, testutil.LinkName))
}

func TestSynchronize_Errors(t *testing.T) {
	te := newPostcodeEngine(t)
	ctx := context.Background()
	pair, err := te.Registry().PairFor(testutil.SourceType)
	require.NoError(t, err)

	t.Run("incomplete pair", func(t *testing.T) {
		_, err := te.Synchronize(ctx, newSource("1"), descriptor.Pair{}, false)
		assert.Equal(t, ErrCodeDescriptorResolution, CodeOf(err))
	})

	t.Run("wrong type", func(t *testing.T) {
		r := &ir.Record{Type: testutil.TargetType, ID: "x"}
		_, err := te.Synchronize(ctx, r, pair, false)
		assert.Equal(t, ErrCodeDescriptorResolution, CodeOf(err))
	})

	t.Run("unsaved source", func(t *testing.T) {
		_, err := te.Synchronize(ctx, newSource("1"), pair, false)
		assert.Error(t, err)
	})
}

func newAddressEngine(t *testing.T) *testEngine {
	t.Helper()
	testutil.UseClock(t, testutil.NewStepClock())
	reg, err := descriptor.Load("../descriptor/testdata/address.yaml", map[string]descriptor.ComputeFunc{
		"label": descriptor.Concat(", ", "street", "city"),
	})
	require.NoError(t, err)
	return newTestEngine(t, reg)
}

func TestSynchronize_AddressConfig(t *testing.T) {
	te := newAddressEngine(t)
	ctx := context.Background()

	legacy := ir.NewRecord("legacy_address", ir.IRObject{
		"street":   ir.IRString("Main 1"),
		"postcode": ir.IRString("10696"),
		"city":     ir.IRString("Berlin"),
	})
	require.NoError(t, te.Save(ctx, legacy))

	addr := te.counterpart(t, legacy)
	assert.Equal(t, "address", addr.Type)
	assert.Equal(t, ir.IRObject{
		"street":    ir.IRString("Main 1"),
		"zip_code":  ir.IRString("10696"),
		"city":      ir.IRString("Berlin"),
		"label":     ir.IRString("Main 1, Berlin"),
		"synced_at": ir.IRString("2024-01-01T00:00:00Z"),
	}, addr.Fields)

	// The reverse direction maps zip_code back onto postcode.
	addr.Set("zip_code", ir.IRString("20095"))
	require.NoError(t, te.Save(ctx, addr))

	stored, err := te.Store().GetRecord(ctx, legacy.Type, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("20095"), stored.Fields["postcode"])
	assert.Equal(t, 1, te.count(t, "address"))
	assert.Equal(t, 1, te.linkCount(t, "address_buddy"))
}

func TestSynchronize_ExcludedType(t *testing.T) {
	te := newAddressEngine(t)
	ctx := context.Background()

	billing := ir.NewRecord("org_billing_address", ir.IRObject{
		"street":   ir.IRString("Invoice Str. 5"),
		"postcode": ir.IRString("10115"),
	})
	require.NoError(t, te.Save(ctx, billing))
	assert.Equal(t, 0, te.count(t, "address"), "excluded type never propagates")

	require.NoError(t, te.Delete(ctx, billing))
	assert.Equal(t, 0, te.count(t, "org_billing_address"))
}
