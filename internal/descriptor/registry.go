package descriptor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/autosync/internal/ir"
)

// Descriptor is the configuration record for one (representation,
// direction) pair. It is consumed from YAML or CUE and resolved into a
// Resolved by a Registry.
type Descriptor struct {
	Name               string            `yaml:"name" json:"name"`
	Type               string            `yaml:"type" json:"type"`
	Buddy              string            `yaml:"buddy" json:"buddy"`
	FieldsMapping      map[string]string `yaml:"fields_mapping,omitempty" json:"fields_mapping,omitempty"`
	FieldsOptional     []string          `yaml:"fields_optional,omitempty" json:"fields_optional,omitempty"`
	FieldsFuncs        []FieldFunc       `yaml:"fields_funcs,omitempty" json:"fields_funcs,omitempty"`
	RelatedNameInBuddy string            `yaml:"related_name_in_buddy" json:"related_name_in_buddy"`
	FieldNameInBuddy   string            `yaml:"field_name_in_buddy" json:"field_name_in_buddy"`
	ModelManager       string            `yaml:"model_manager,omitempty" json:"model_manager,omitempty"`
	ReadOnly           bool              `yaml:"read_only,omitempty" json:"read_only,omitempty"`
}

// FieldFunc is one fields_funcs entry. Func names a registered ComputeFunc
// or a builtin factory, which is built from Args.
type FieldFunc struct {
	Key       string `yaml:"key" json:"key"`
	Func      string `yaml:"func" json:"func"`
	Args      []any  `yaml:"args,omitempty" json:"args,omitempty"`
	Optional  bool   `yaml:"optional,omitempty" json:"optional,omitempty"`
	DependsOn string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Volatile  bool   `yaml:"volatile,omitempty" json:"volatile,omitempty"`
}

// Registry is the type catalog descriptors are resolved against.
// It is populated at startup and read concurrently afterwards.
type Registry struct {
	mu          sync.RWMutex
	types       map[string]*EntityType
	links       map[string]*LinkType
	funcs       map[string]ComputeFunc
	factories   map[string]FuncFactory
	volatile    map[string]bool
	descriptors map[string]*Resolved
	pairs       map[string]Pair // keyed by source entity type
}

// NewRegistry creates an empty registry with the builtin compute functions
// registered.
func NewRegistry() *Registry {
	r := &Registry{
		types:       make(map[string]*EntityType),
		links:       make(map[string]*LinkType),
		funcs:       make(map[string]ComputeFunc),
		factories:   make(map[string]FuncFactory),
		volatile:    make(map[string]bool),
		descriptors: make(map[string]*Resolved),
		pairs:       make(map[string]Pair),
	}
	registerBuiltins(r)
	return r
}

// RegisterType adds an entity type. Names must be unique.
func (r *Registry) RegisterType(t EntityType) error {
	if t.Name == "" {
		return fmt.Errorf("register type: empty name")
	}
	switch t.Identity {
	case "":
		t.Identity = IdentityGenerated
	case IdentityGenerated, IdentityAssigned:
	default:
		return fmt.Errorf("register type %q: invalid identity %q", t.Name, t.Identity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("register type %q: already registered", t.Name)
	}
	r.types[t.Name] = &t
	return nil
}

// RegisterLink adds a buddy link type. Both ends must name registered
// entity types and have distinct field names.
func (r *Registry) RegisterLink(l LinkType) error {
	if l.Name == "" {
		return fmt.Errorf("register link: empty name")
	}
	if l.Ends[0].Field == "" || l.Ends[1].Field == "" {
		return fmt.Errorf("register link %q: both ends need a field name", l.Name)
	}
	if l.Ends[0].Field == l.Ends[1].Field {
		return fmt.Errorf("register link %q: ends share field name %q", l.Name, l.Ends[0].Field)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.links[l.Name]; exists {
		return fmt.Errorf("register link %q: already registered", l.Name)
	}
	for i := range l.Ends {
		if _, ok := r.types[l.Ends[i].Type]; !ok {
			return fmt.Errorf("register link %q: %w", l.Name, &UnknownTypeError{Kind: "entity type", Name: l.Ends[i].Type})
		}
		if l.Ends[i].RelatedName == "" {
			l.Ends[i].RelatedName = l.Name
		}
	}
	r.links[l.Name] = &l
	return nil
}

// RegisterFunc adds a compute function under name. Volatile functions are
// excluded from projection idempotence checks.
func (r *Registry) RegisterFunc(name string, fn ComputeFunc, volatile bool) error {
	if name == "" || fn == nil {
		return fmt.Errorf("register func: name and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.funcs[name]
	if _, builtin := r.factories[name]; exists || builtin {
		return fmt.Errorf("register func %q: already registered", name)
	}
	r.funcs[name] = fn
	r.volatile[name] = volatile
	return nil
}

// Type returns a registered entity type.
func (r *Registry) Type(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, &UnknownTypeError{Kind: "entity type", Name: name}
	}
	return t, nil
}

// Link returns a registered link type.
func (r *Registry) Link(name string) (*LinkType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.links[name]
	if !ok {
		return nil, &UnknownTypeError{Kind: "link type", Name: name}
	}
	return l, nil
}

// Func returns a registered compute function.
func (r *Registry) Func(name string) (ComputeFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, &UnknownTypeError{Kind: "function", Name: name}
	}
	return fn, nil
}

// TypeNames returns registered entity type names in sorted order.
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve turns a descriptor record into a Resolved without storing it.
func (r *Registry) Resolve(d Descriptor) (*Resolved, error) {
	name := d.Name
	if name == "" {
		name = d.Type
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[d.Type]
	if !ok {
		return nil, resolutionErr(name, "type", "", &UnknownTypeError{Kind: "entity type", Name: d.Type})
	}
	link, ok := r.links[d.Buddy]
	if !ok {
		return nil, resolutionErr(name, "buddy", "", &UnknownTypeError{Kind: "link type", Name: d.Buddy})
	}
	end, ok := link.End(d.FieldNameInBuddy)
	if !ok {
		return nil, resolutionErr(name, "field_name_in_buddy",
			fmt.Sprintf("link %q has no end %q", link.Name, d.FieldNameInBuddy), nil)
	}
	if end.Type != t.Name {
		return nil, resolutionErr(name, "field_name_in_buddy",
			fmt.Sprintf("end %q of link %q points at %q, not %q", end.Field, link.Name, end.Type, t.Name), nil)
	}
	if d.RelatedNameInBuddy != end.RelatedName {
		return nil, resolutionErr(name, "related_name_in_buddy",
			fmt.Sprintf("end %q of link %q is reached through %q, not %q", end.Field, link.Name, end.RelatedName, d.RelatedNameInBuddy), nil)
	}
	if err := ValidateScope(d.ModelManager); err != nil {
		return nil, resolutionErr(name, "model_manager", "", err)
	}

	res := &Resolved{
		Name:     name,
		Type:     t,
		Link:     link,
		End:      end,
		Optional: make(map[string]bool, len(d.FieldsOptional)),
		Scope:    NormalizeScope(d.ModelManager),
		ReadOnly: d.ReadOnly,
	}

	// Mapping order is irrelevant to the result; sorting keeps logs and
	// error reporting stable.
	sources := make([]string, 0, len(d.FieldsMapping))
	for src := range d.FieldsMapping {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		dst := d.FieldsMapping[src]
		if t.HasSchema() && !t.Has(dst) {
			return nil, resolutionErr(name, "fields_mapping",
				fmt.Sprintf("type %q has no field %q (mapped from %q)", t.Name, dst, src), nil)
		}
		res.Mapping = append(res.Mapping, FieldMapping{Source: src, Target: dst})
	}

	for _, f := range d.FieldsOptional {
		res.Optional[f] = true
	}

	for i, ff := range d.FieldsFuncs {
		if ff.Key == "" {
			return nil, resolutionErr(name, fmt.Sprintf("fields_funcs[%d]", i), "missing key", nil)
		}
		fn, err := r.bindFunc(ff)
		if err != nil {
			return nil, resolutionErr(name, fmt.Sprintf("fields_funcs[%d]", i), "", err)
		}
		dep := ff.DependsOn
		if dep == "" {
			dep = ff.Key
		}
		res.Funcs = append(res.Funcs, BoundFunc{
			Key:       ff.Key,
			Name:      ff.Func,
			Fn:        fn,
			Optional:  ff.Optional,
			DependsOn: dep,
			Volatile:  ff.Volatile || r.volatile[ff.Func],
		})
	}

	return res, nil
}

// bindFunc looks up ff.Func, building factory functions from ff.Args.
// Callers hold r.mu.
func (r *Registry) bindFunc(ff FieldFunc) (ComputeFunc, error) {
	if build, ok := r.factories[ff.Func]; ok {
		args := make([]ir.IRValue, len(ff.Args))
		for i, a := range ff.Args {
			v, err := ir.FromAny(a)
			if err != nil {
				return nil, fmt.Errorf("%s args[%d]: %w", ff.Func, i, err)
			}
			args[i] = v
		}
		fn, err := build(args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ff.Func, err)
		}
		return fn, nil
	}
	fn, ok := r.funcs[ff.Func]
	if !ok {
		return nil, &UnknownTypeError{Kind: "function", Name: ff.Func}
	}
	if len(ff.Args) > 0 {
		return nil, fmt.Errorf("function %q takes no args", ff.Func)
	}
	return fn, nil
}

// AddDescriptor resolves d and stores it under its name.
func (r *Registry) AddDescriptor(d Descriptor) (*Resolved, error) {
	res, err := r.Resolve(d)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[res.Name]; exists {
		return nil, fmt.Errorf("add descriptor %q: already registered", res.Name)
	}
	r.descriptors[res.Name] = res
	return res, nil
}

// Descriptor returns a stored resolved descriptor.
func (r *Registry) Descriptor(name string) (*Resolved, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	if !ok {
		return nil, &UnknownTypeError{Kind: "descriptor", Name: name}
	}
	return d, nil
}

// Bind declares that writes to the source descriptor's type propagate to
// the target descriptor's type. Both descriptors must share a link type and
// sit on opposite ends of it. Excluded types are bound to the same pair so
// their default hooks can refuse propagation.
func (r *Registry) Bind(source, target string, excluded ...string) (Pair, error) {
	src, err := r.Descriptor(source)
	if err != nil {
		return Pair{}, resolutionErr(source, "source", "", err)
	}
	dst, err := r.Descriptor(target)
	if err != nil {
		return Pair{}, resolutionErr(target, "target", "", err)
	}
	if src.Link != dst.Link {
		return Pair{}, resolutionErr(target, "buddy",
			fmt.Sprintf("link %q differs from source link %q", dst.Link.Name, src.Link.Name), nil)
	}
	if src.End == dst.End {
		return Pair{}, resolutionErr(target, "field_name_in_buddy",
			fmt.Sprintf("source and target share link end %q", src.End.Field), nil)
	}

	pair := Pair{Source: src, Target: dst, Excluded: make(map[string]bool, len(excluded))}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range excluded {
		if _, ok := r.types[ex]; !ok {
			return Pair{}, resolutionErr(source, "exclude", "", &UnknownTypeError{Kind: "entity type", Name: ex})
		}
		pair.Excluded[ex] = true
	}
	keys := append([]string{src.Type.Name}, excluded...)
	for _, k := range keys {
		if _, exists := r.pairs[k]; exists {
			return Pair{}, fmt.Errorf("bind %q: type %q already has a sync pair", source, k)
		}
	}
	for _, k := range keys {
		r.pairs[k] = pair
	}
	return pair, nil
}

// PairFor returns the descriptor pair bound to an entity type.
func (r *Registry) PairFor(typeName string) (Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pairs[typeName]
	if !ok {
		return Pair{}, resolutionErr(typeName, "", "no sync pair bound for type", nil)
	}
	return p, nil
}

// SyncedTypes returns the entity types that have a bound pair, sorted.
func (r *Registry) SyncedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pairs))
	for n := range r.pairs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DescriptorsFor returns every stored descriptor whose entity type is
// typeName, sorted by name.
func (r *Registry) DescriptorsFor(typeName string) []*Resolved {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Resolved
	for _, d := range r.descriptors {
		if d.Type.Name == typeName {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RelatedEnd resolves a related_name_in_buddy for an entity type into the
// link type and the end that the type occupies.
func (r *Registry) RelatedEnd(typeName, relatedName string) (*LinkType, *LinkEnd, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.links {
		for i := range l.Ends {
			if l.Ends[i].Type == typeName && l.Ends[i].RelatedName == relatedName {
				return l, &l.Ends[i], nil
			}
		}
	}
	return nil, nil, &UnknownTypeError{Kind: "related name", Name: typeName + "." + relatedName}
}
