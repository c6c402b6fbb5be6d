package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.GetSwitch(ctx, "org-1", "new_basket")
	assert.True(t, IsNotFound(err))

	require.NoError(t, s.SetSwitch(ctx, Switch{Organization: "org-1", Feature: "new_basket", Active: true, Note: "pilot"}))
	sw, err := s.GetSwitch(ctx, "org-1", "new_basket")
	require.NoError(t, err)
	assert.Equal(t, Switch{Organization: "org-1", Feature: "new_basket", Active: true, Note: "pilot"}, withoutStamps(sw))

	require.NoError(t, s.SetSwitch(ctx, Switch{Organization: "org-1", Feature: "new_basket"}))
	sw, err = s.GetSwitch(ctx, "org-1", "new_basket")
	require.NoError(t, err)
	assert.False(t, sw.Active, "set replaces the existing switch")
	assert.Empty(t, sw.Note)

	require.NoError(t, s.SetSwitch(ctx, Switch{Organization: "org-2", Feature: "sales_transaction", Active: true}))
	require.NoError(t, s.SetSwitch(ctx, Switch{Organization: "org-1", Feature: "new_user_panel", Active: true}))

	all, err := s.ListSwitches(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new_basket", all[0].Feature)
	assert.Equal(t, "new_user_panel", all[1].Feature)
	assert.Equal(t, "org-2", all[2].Organization)

	org1, err := s.ListSwitches(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, org1, 2)

	assert.Error(t, s.SetSwitch(ctx, Switch{Feature: "x"}))
}

func withoutStamps(sw Switch) Switch {
	sw.CreationDate, sw.LastModified = time.Time{}, time.Time{}
	return sw
}

// stepClock returns a clock that advances one minute per call.
func stepClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

func TestSwitches_Timestamps(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithClock(stepClock(start)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	require.NoError(t, s.SetSwitch(ctx, Switch{Organization: "org-1", Feature: "new_basket", Active: true}))
	sw, err := s.GetSwitch(ctx, "org-1", "new_basket")
	require.NoError(t, err)
	assert.Equal(t, start, sw.CreationDate)
	assert.Equal(t, start, sw.LastModified)

	require.NoError(t, s.SetSwitch(ctx, Switch{
		Organization: "org-1",
		Feature:      "new_basket",
		CreationDate: start.Add(-time.Hour),
	}))
	sw, err = s.GetSwitch(ctx, "org-1", "new_basket")
	require.NoError(t, err)
	assert.Equal(t, start, sw.CreationDate, "creation_date survives replacement")
	assert.Equal(t, start.Add(time.Minute), sw.LastModified)

	all, err := s.ListSwitches(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, sw, all[0])
}
