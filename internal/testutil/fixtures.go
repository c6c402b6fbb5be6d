// Package testutil holds fixtures shared by package tests: a deterministic
// clock for computed timestamps, temp-dir stores, a small descriptor
// registry and a log capture handler.
package testutil

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/store"
)

// OpenStore opens a store in a temp dir with sequential record and link
// ids ("id-0001", ...). It is closed when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "autosync.db"),
		store.WithIDGenerator(store.NewSequenceGenerator("id")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Types, link and descriptor names of the postcode registry.
const (
	SourceType = "source"
	TargetType = "target"
	LinkName   = "buddy"
)

// PostcodeRegistry builds the minimal two-representation registry:
//
//	source{postcode, deleted_date} ⇄ target{zip_code, deleted_date}
//
// Both ends are reached through related name "link". Source writes
// propagate to target and target writes propagate back.
func PostcodeRegistry(t testing.TB) *descriptor.Registry {
	t.Helper()
	reg := descriptor.NewRegistry()
	require.NoError(t, reg.RegisterType(descriptor.EntityType{Name: SourceType, Fields: []string{"postcode", "deleted_date"}}))
	require.NoError(t, reg.RegisterType(descriptor.EntityType{Name: TargetType, Fields: []string{"zip_code", "deleted_date"}}))
	require.NoError(t, reg.RegisterLink(descriptor.LinkType{
		Name: LinkName,
		Ends: [2]descriptor.LinkEnd{
			{Field: "source", Type: SourceType, RelatedName: "link"},
			{Field: "target", Type: TargetType, RelatedName: "link"},
		},
	}))
	_, err := reg.AddDescriptor(descriptor.Descriptor{
		Name:               SourceType,
		Type:               SourceType,
		Buddy:              LinkName,
		FieldsMapping:      map[string]string{"zip_code": "postcode"},
		RelatedNameInBuddy: "link",
		FieldNameInBuddy:   "source",
	})
	require.NoError(t, err)
	_, err = reg.AddDescriptor(descriptor.Descriptor{
		Name:               TargetType,
		Type:               TargetType,
		Buddy:              LinkName,
		FieldsMapping:      map[string]string{"postcode": "zip_code"},
		RelatedNameInBuddy: "link",
		FieldNameInBuddy:   "target",
	})
	require.NoError(t, err)

	_, err = reg.Bind(SourceType, TargetType)
	require.NoError(t, err)
	_, err = reg.Bind(TargetType, SourceType)
	require.NoError(t, err)
	return reg
}

// LogBuffer captures slog output as text for assertions.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Logger returns a debug-level logger writing into the buffer.
func (b *LogBuffer) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
