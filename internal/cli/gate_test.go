package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/autosync/internal/store"
)

func TestGateSetGetList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "gates.db")

	out, _, err := executeRoot(t, "gate", "get", "acme", "new_basket", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "acme: New Basket - Inactive\n", out)

	out, _, err = executeRoot(t, "gate", "set", "acme", "new_basket", "on", "--note", "pilot", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "acme: New Basket - Active\n", out)

	_, _, err = executeRoot(t, "gate", "set", "globex", "sales_transaction", "off", "--db", db)
	require.NoError(t, err)

	out, _, err = executeRoot(t, "gate", "get", "acme", "new_basket", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "acme: New Basket - Active\n", out)

	out, _, err = executeRoot(t, "gate", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "acme: New Basket - Active\nglobex: Sales Transaction - Inactive\n", out)

	out, _, err = executeRoot(t, "gate", "list", "globex", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "globex: Sales Transaction - Inactive\n", out)
}

func TestGateListJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "gates.db")
	_, _, err := executeRoot(t, "gate", "set", "acme", "new_user_panel", "on", "--note", "rollout", "--db", db)
	require.NoError(t, err)

	out, _, err := executeRoot(t, "gate", "list", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   GateListResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Switches, 1)
	sw := resp.Data.Switches[0]
	assert.False(t, sw.CreationDate.IsZero())
	assert.Equal(t, sw.CreationDate, sw.LastModified)
	sw.CreationDate, sw.LastModified = time.Time{}, time.Time{}
	assert.Equal(t, store.Switch{Organization: "acme", Feature: "new_user_panel", Active: true, Note: "rollout"}, sw)
}

func TestGateListEmpty(t *testing.T) {
	out, _, err := executeRoot(t, "gate", "list", "--db", filepath.Join(t.TempDir(), "gates.db"))
	require.NoError(t, err)
	assert.Equal(t, "No switches set.\n", out)
}

func TestGateSetUnknownFeatureIsVerboseNote(t *testing.T) {
	db := filepath.Join(t.TempDir(), "gates.db")

	out, logs, err := executeRoot(t, "gate", "set", "acme", "dark_mode", "on", "--db", db, "--verbose")
	require.NoError(t, err)
	assert.Equal(t, "acme: dark_mode - Active\n", out)
	assert.Contains(t, logs, "dark_mode is not a known feature")
}

func TestGateErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "gates.db")

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"bad state", []string{"gate", "set", "acme", "new_basket", "maybe", "--db", db}, ExitCommandError, `invalid state "maybe"`},
		{"no db", []string{"gate", "list"}, ExitCommandError, "--db is required"},
		{"get needs two args", []string{"gate", "get", "acme", "--db", db}, ExitFailure, "accepts 2 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeRoot(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
