package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of writes against a descriptor config,
// followed by assertions on the resulting records, links and trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the descriptor configuration (YAML or CUE) to load.
	// Relative paths are resolved against the scenario file location.
	Config string `yaml:"config"`

	// Steps are executed in order against a fresh in-memory store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one write issued through the engine.
type Step struct {
	// Op is one of create, update, delete or backfill.
	Op string `yaml:"op"`

	// Type is the entity type (create and backfill).
	Type string `yaml:"type,omitempty"`

	// Ref names the record. A create binds the alias, update and delete
	// look it up.
	Ref string `yaml:"ref,omitempty"`

	// ID sets an assigned identity on create.
	ID string `yaml:"id,omitempty"`

	// Fields are set on the record before saving. A null value stores null.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Target marks the write as a counterpart write.
	Target bool `yaml:"target,omitempty"`

	// Bulk runs hooks in bulk mode.
	Bulk bool `yaml:"bulk,omitempty"`

	// Suppress lists entity types whose hooks are skipped for this step.
	Suppress []string `yaml:"suppress,omitempty"`

	// Counterpart binds an alias to the record's counterpart after the step.
	Counterpart string `yaml:"counterpart,omitempty"`

	// ExpectError is the sync error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operation constants.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpBackfill = "backfill"
)

// Assertion validates final state or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "in_sync": every mapped field of ref equals its counterpart's
	// - "linked": ref has a counterpart
	// - "unlinked": ref has no counterpart
	// - "missing": ref is no longer stored
	// - "count": number of stored records of entity, or links of link
	// - "fields": ref's stored fields contain expect
	// - "trace_count": number of trace events with op (and entity)
	// - "idempotent": projecting ref twice yields the same digest
	Type string `yaml:"type"`

	// Ref is the record alias (in_sync, linked, unlinked, missing, fields,
	// idempotent).
	Ref string `yaml:"ref,omitempty"`

	// Entity is the entity type (count, trace_count).
	Entity string `yaml:"entity,omitempty"`

	// Link is the link type (count).
	Link string `yaml:"link,omitempty"`

	// Op is the trace operation (trace_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number (count, trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected field values (fields).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertInSync     = "in_sync"
	AssertLinked     = "linked"
	AssertUnlinked   = "unlinked"
	AssertMissing    = "missing"
	AssertCount      = "count"
	AssertFields     = "fields"
	AssertTraceCount = "trace_count"
	AssertIdempotent = "idempotent"
)

// LoadScenario reads and parses a scenario YAML file, resolving the config
// path relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the config path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) && basePath != "" {
		scenario.Config = filepath.Join(basePath, scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if _, err := os.Stat(s.Config); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.Config)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	refs := make(map[string]bool)
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], refs); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], refs); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks one step and records the aliases it binds.
func validateStep(index int, st *Step, refs map[string]bool) error {
	switch st.Op {
	case OpCreate:
		if st.Type == "" {
			return fmt.Errorf("steps[%d]: type is required for create", index)
		}
		if st.Ref != "" {
			if refs[st.Ref] {
				return fmt.Errorf("steps[%d]: ref %q is already bound", index, st.Ref)
			}
			refs[st.Ref] = true
		}
	case OpUpdate, OpDelete:
		if st.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for %s", index, st.Op)
		}
		if !refs[st.Ref] {
			return fmt.Errorf("steps[%d]: unknown ref %q", index, st.Ref)
		}
		if st.Op == OpDelete && len(st.Fields) > 0 {
			return fmt.Errorf("steps[%d]: delete takes no fields", index)
		}
	case OpBackfill:
		if st.Type == "" {
			return fmt.Errorf("steps[%d]: type is required for backfill", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if st.Counterpart != "" {
		if st.Op == OpBackfill {
			return fmt.Errorf("steps[%d]: counterpart needs a ref", index)
		}
		if refs[st.Counterpart] {
			return fmt.Errorf("steps[%d]: ref %q is already bound", index, st.Counterpart)
		}
		refs[st.Counterpart] = true
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, refs map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertInSync, AssertLinked, AssertUnlinked, AssertMissing, AssertFields, AssertIdempotent:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for %s", index, a.Type)
		}
		if !refs[a.Ref] {
			return fmt.Errorf("assertions[%d]: unknown ref %q", index, a.Ref)
		}
		if a.Type == AssertFields && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for fields", index)
		}
	case AssertCount:
		if (a.Entity == "") == (a.Link == "") {
			return fmt.Errorf("assertions[%d]: count needs exactly one of entity or link", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
