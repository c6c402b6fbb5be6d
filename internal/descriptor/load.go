package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// CUERoot is the optional top-level field that wraps a CUE configuration.
const CUERoot = "autosync"

// Config is the on-disk description of a sync setup: the type catalog, the
// descriptors resolved against it and the pairs bound from them.
type Config struct {
	Types       []TypeConfig `yaml:"types" json:"types"`
	Links       []LinkConfig `yaml:"links" json:"links"`
	Descriptors []Descriptor `yaml:"descriptors" json:"descriptors"`
	Syncs       []SyncConfig `yaml:"syncs" json:"syncs"`
}

// TypeConfig declares an entity type. Omitting fields makes it schemaless.
type TypeConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Fields   []string `yaml:"fields,omitempty" json:"fields,omitempty"`
	Identity string   `yaml:"identity,omitempty" json:"identity,omitempty"`
}

// LinkConfig declares a buddy link type with exactly two ends.
type LinkConfig struct {
	Name string    `yaml:"name" json:"name"`
	Ends []LinkEnd `yaml:"ends" json:"ends"`
}

// SyncConfig binds a source descriptor to a target descriptor.
type SyncConfig struct {
	Source  string   `yaml:"source" json:"source"`
	Target  string   `yaml:"target" json:"target"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// ConfigError reports a configuration file that cannot be decoded.
type ConfigError struct {
	Path    string
	Message string
	Pos     token.Pos // set for CUE input
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LoadFile reads a configuration from a .yaml, .yml or .cue file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(path, data)
	case ".cue":
		return ParseCUE(path, data)
	default:
		return nil, &ConfigError{Path: path, Message: "unsupported config extension (want .yaml, .yml or .cue)"}
	}
}

// ParseYAML decodes a YAML configuration. Unknown keys are rejected.
func ParseYAML(path string, data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}
	return &cfg, nil
}

// ParseCUE evaluates a CUE configuration and decodes it. The configuration
// may sit at the file root or under an "autosync" field.
func ParseCUE(path string, data []byte) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueConfigError(path, err)
	}

	if wrapped := v.LookupPath(cue.ParsePath(CUERoot)); wrapped.Exists() {
		v = wrapped
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueConfigError(path, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, cueConfigError(path, err)
	}
	return &cfg, nil
}

func cueConfigError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Path: path, Message: err.Error()}
	}
	first := errs[0]
	cerr := &ConfigError{Path: path, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		cerr.Pos = positions[0]
	}
	return cerr
}

// Apply registers the configuration into reg. Every problem is reported,
// joined into one error; a partial registry is left behind on failure.
func (c *Config) Apply(reg *Registry) error {
	var errs []error

	for _, t := range c.Types {
		if err := reg.RegisterType(EntityType{Name: t.Name, Fields: t.Fields, Identity: t.Identity}); err != nil {
			errs = append(errs, err)
		}
	}

	for _, l := range c.Links {
		if len(l.Ends) != 2 {
			errs = append(errs, fmt.Errorf("link %q: need exactly 2 ends, got %d", l.Name, len(l.Ends)))
			continue
		}
		if err := reg.RegisterLink(LinkType{Name: l.Name, Ends: [2]LinkEnd{l.Ends[0], l.Ends[1]}}); err != nil {
			errs = append(errs, err)
		}
	}

	for _, d := range c.Descriptors {
		if _, err := reg.AddDescriptor(d); err != nil {
			errs = append(errs, err)
		}
	}

	for _, s := range c.Syncs {
		if _, err := reg.Bind(s.Source, s.Target, s.Exclude...); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Load reads path and applies it to a fresh registry. Extra compute
// functions are registered before descriptors are resolved.
func Load(path string, funcs map[string]ComputeFunc) (*Registry, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for name, fn := range funcs {
		if err := reg.RegisterFunc(name, fn, false); err != nil {
			return nil, err
		}
	}
	if err := cfg.Apply(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
