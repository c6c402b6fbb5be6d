package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/autosync/internal/ir"
)

// TraceSnapshot captures the trace and final records of a scenario run.
// It is serialized with canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Records      map[string][]RecordState
}

// toCanonical converts the snapshot to an IR object so it can be
// serialized by ir.MarshalCanonical.
func (s *TraceSnapshot) toCanonical() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.IRObject{
			"step":  ir.IRInt(ev.Step),
			"op":    ir.IRString(ev.Op),
			"type":  ir.IRString(ev.Type),
			"id":    ir.IRString(ev.ID),
			"chain": ir.IRString(ev.Chain),
		}
		flags := map[string]bool{"update": ev.Update, "target": ev.Target, "bulk": ev.Bulk}
		for k, set := range flags {
			if set {
				obj[k] = ir.IRBool(true)
			}
		}
		strs := map[string]string{"hook": ev.Hook, "link": ev.Link, "other": ev.Other, "error": ev.Error}
		for k, v := range strs {
			if v != "" {
				obj[k] = ir.IRString(v)
			}
		}
		trace[i] = obj
	}

	records := make(ir.IRObject, len(s.Records))
	for typeName, states := range s.Records {
		arr := make(ir.IRArray, len(states))
		for i, st := range states {
			obj := ir.IRObject{
				"id":      ir.IRString(st.ID),
				"version": ir.IRInt(st.Version),
				"fields":  st.Fields,
			}
			if st.Ref != "" {
				obj["ref"] = ir.IRString(st.Ref)
			}
			arr[i] = obj
		}
		records[typeName] = arr
	}

	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         trace,
		"records":       records,
	}
}

// MarshalSnapshot renders a result as the canonical JSON stored in golden
// files.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Records:      result.Records,
	}
	return ir.MarshalCanonical(snapshot.toCanonical())
}

// RunWithGolden executes a scenario, fails the test if the scenario did not
// pass, and compares its snapshot against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) error {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
