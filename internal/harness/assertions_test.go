package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/engine"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/testutil"
)

func newPostcodeEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(testutil.OpenStore(t), testutil.PostcodeRegistry(t),
		engine.WithLogger(testutil.DiscardLogger()))
}

func TestCheckInSync(t *testing.T) {
	eng := newPostcodeEngine(t)
	ctx := context.Background()

	src := ir.NewRecord(testutil.SourceType, ir.IRObject{"postcode": ir.IRString("10696")})
	require.NoError(t, eng.Save(ctx, src))
	require.NoError(t, CheckInSync(ctx, eng, src))

	m, found, err := FindCounterpart(ctx, eng, src)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testutil.SourceType, m.Source.Name)
	assert.Equal(t, testutil.TargetType, m.Target.Name)

	// Drift the counterpart behind the engine's back.
	m.Record.Set("zip_code", ir.IRString("99999"))
	require.NoError(t, eng.Store().SaveRecord(ctx, m.Record))

	err = CheckInSync(ctx, eng, src)
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertInSync, ae.Type)
	assert.Equal(t, `"99999"`, ae.Actual)
	assert.Contains(t, ae.Expected, `zip_code = "10696"`)
}

func TestCheckInSync_Unlinked(t *testing.T) {
	eng := newPostcodeEngine(t)
	ctx := context.Background()

	src := ir.NewRecord(testutil.SourceType, ir.IRObject{"postcode": ir.IRString("10696")})
	require.NoError(t, eng.Save(ctx, src, engine.WithTarget()))

	err := CheckInSync(ctx, eng, src)
	assert.ErrorContains(t, err, "no buddy link")
}

// ambiguousRegistry has one source descriptor and the given descriptors on
// the target end, none of them bound.
func ambiguousRegistry(t *testing.T, targets map[string]bool) (*descriptor.Registry, *descriptor.Resolved) {
	t.Helper()
	reg := descriptor.NewRegistry()
	require.NoError(t, reg.RegisterType(descriptor.EntityType{Name: "old", Fields: []string{"a"}}))
	require.NoError(t, reg.RegisterType(descriptor.EntityType{Name: "new", Fields: []string{"a"}}))
	require.NoError(t, reg.RegisterLink(descriptor.LinkType{
		Name: "pair",
		Ends: [2]descriptor.LinkEnd{
			{Field: "old", Type: "old", RelatedName: "to_new"},
			{Field: "new", Type: "new", RelatedName: "to_old"},
		},
	}))
	src, err := reg.AddDescriptor(descriptor.Descriptor{
		Name: "old", Type: "old", Buddy: "pair",
		RelatedNameInBuddy: "to_new", FieldNameInBuddy: "old",
	})
	require.NoError(t, err)
	for name, readOnly := range targets {
		_, err := reg.AddDescriptor(descriptor.Descriptor{
			Name: name, Type: "new", Buddy: "pair",
			RelatedNameInBuddy: "to_old", FieldNameInBuddy: "new",
			FieldsMapping: map[string]string{"a": "a"},
			ReadOnly:      readOnly,
		})
		require.NoError(t, err)
	}
	return reg, src
}

func TestFindTargetDescriptor(t *testing.T) {
	t.Run("bound pair wins", func(t *testing.T) {
		reg := testutil.PostcodeRegistry(t)
		src, err := reg.Descriptor(testutil.SourceType)
		require.NoError(t, err)
		got, err := FindTargetDescriptor(reg, src)
		require.NoError(t, err)
		assert.Equal(t, testutil.TargetType, got.Name)
	})

	t.Run("single candidate", func(t *testing.T) {
		reg, src := ambiguousRegistry(t, map[string]bool{"new_a": false})
		got, err := FindTargetDescriptor(reg, src)
		require.NoError(t, err)
		assert.Equal(t, "new_a", got.Name)
	})

	t.Run("read-only candidates skipped", func(t *testing.T) {
		reg, src := ambiguousRegistry(t, map[string]bool{"new_a": false, "new_b": true})
		got, err := FindTargetDescriptor(reg, src)
		require.NoError(t, err)
		assert.Equal(t, "new_a", got.Name)
	})

	t.Run("several candidates", func(t *testing.T) {
		reg, src := ambiguousRegistry(t, map[string]bool{"new_a": false, "new_b": false})
		_, err := FindTargetDescriptor(reg, src)
		var amb *AmbiguousTargetError
		require.True(t, errors.As(err, &amb))
		assert.Equal(t, "old", amb.Source)
		assert.Equal(t, []string{"new_a", "new_b"}, amb.Candidates)
		assert.Contains(t, err.Error(), "candidates new_a, new_b")
	})

	t.Run("no candidates", func(t *testing.T) {
		reg, src := ambiguousRegistry(t, nil)
		_, err := FindTargetDescriptor(reg, src)
		var amb *AmbiguousTargetError
		require.True(t, errors.As(err, &amb))
		assert.Contains(t, err.Error(), "no candidates")
	})
}

func TestRun_ReadOnlyUpdatesNotVerified(t *testing.T) {
	cfg, err := os.ReadFile(postcodeConfig)
	require.NoError(t, err)
	readOnly := strings.Replace(string(cfg),
		"    field_name_in_buddy: source\n",
		"    field_name_in_buddy: source\n    read_only: true\n", 1)
	require.NotEqual(t, string(cfg), readOnly)

	path := filepath.Join(t.TempDir(), "readonly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(readOnly), 0o644))

	scenario := &Scenario{
		Name:        "read_only",
		Description: "updates through read-only descriptors are not verified",
		Config:      path,
		Steps: []Step{
			{Op: OpCreate, Type: "source", Ref: "home", Fields: map[string]any{"postcode": "1"}},
			{Op: OpUpdate, Ref: "home", Fields: map[string]any{"postcode": "2"}, Suppress: []string{"source"}},
			{Op: OpCreate, Type: "target", Ref: "other", Fields: map[string]any{"zip_code": "3"}},
			{Op: OpUpdate, Ref: "other", Fields: map[string]any{"zip_code": "4"}, Suppress: []string{"target"}},
		},
		Assertions: []Assertion{
			{Type: AssertInSync, Ref: "home"},
			{Type: AssertInSync, Ref: "other"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1, "only the writable side is verified")
	assert.Contains(t, result.Errors[0], `postcode = "4"`)
}

func TestEvaluateAssertions_RequiresEngine(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertLinked, Ref: "x"},
		{Type: AssertTraceCount, Op: "save", Count: 0},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "linked requires an engine")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	eng := newPostcodeEngine(t)
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "eventually"}},
		&AssertionContext{Ctx: context.Background(), Engine: eng})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "eventually"`)
}

func TestAssertTraceCount(t *testing.T) {
	trace := []TraceEvent{
		{TraceEvent: engine.TraceEvent{Op: engine.TraceSave, Type: "a"}},
		{TraceEvent: engine.TraceEvent{Op: engine.TraceSave, Type: "b"}},
		{Step: 1, TraceEvent: engine.TraceEvent{Op: engine.TraceLink, Type: "a"}},
	}

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "save", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "save", Entity: "b", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "unlink", Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: "link", Count: 2})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 occurrences of link")
	assert.Contains(t, msg, "Actual: 1 occurrences")
	assert.Contains(t, msg, "[3] step 1: link a/")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{Type: AssertCount, Expected: "2 records of target", Actual: "1"}
	assert.Equal(t, "Assertion failed: count\n  Expected: 2 records of target\n  Actual: 1\n", err.Error())
}

// tickConfig adds a "tick" compute function to the target descriptor of the
// postcode config, marked volatile when asked.
func tickConfig(t *testing.T, volatile bool) string {
	t.Helper()
	cfg, err := os.ReadFile(postcodeConfig)
	require.NoError(t, err)
	funcs := "    fields_funcs:\n      - key: zip_code\n        func: tick\n"
	if volatile {
		funcs += "        volatile: true\n"
	}
	anchor := "    field_name_in_buddy: target\n    fields_mapping:\n      postcode: zip_code\n"
	withTick := strings.Replace(string(cfg), anchor, anchor+funcs, 1)
	require.NotEqual(t, string(cfg), withTick)

	path := filepath.Join(t.TempDir(), "tick.yaml")
	require.NoError(t, os.WriteFile(path, []byte(withTick), 0o644))
	return path
}

func TestAssertIdempotent(t *testing.T) {
	tests := []struct {
		name     string
		volatile bool
		wantErr  bool
	}{
		{name: "counter changes the projection", wantErr: true},
		{name: "volatile counter is left out", volatile: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := 0
			tick := func(*ir.Record) (ir.IRValue, error) {
				n++
				return ir.IRInt(n), nil
			}
			scenario := &Scenario{
				Name:        "tick",
				Description: "projection digests",
				Config:      tickConfig(t, tt.volatile),
				Steps:       []Step{{Op: OpCreate, Type: "source", Ref: "home", Fields: map[string]any{"postcode": "1"}}},
				Assertions:  []Assertion{{Type: AssertIdempotent, Ref: "home"}},
			}

			result, err := Run(scenario, WithFuncs(map[string]descriptor.ComputeFunc{"tick": tick}))
			require.NoError(t, err)
			if !tt.wantErr {
				assert.Empty(t, result.Errors)
				return
			}
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "Assertion failed: idempotent")
			assert.Contains(t, result.Errors[0], "home projects to")
		})
	}
}

func TestAssertIdempotent_MissingRecord(t *testing.T) {
	eng := newPostcodeEngine(t)
	actx := &AssertionContext{
		Ctx:    context.Background(),
		Engine: eng,
		Refs:   map[string]RecordRef{"gone": {Type: testutil.SourceType, ID: "id-0404"}},
	}
	err := assertIdempotent(actx, Assertion{Type: AssertIdempotent, Ref: "gone"})
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertIdempotent, ae.Type)
	assert.Equal(t, "gone stored", ae.Expected)
}
