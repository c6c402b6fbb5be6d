// Package descriptor resolves declarative sync descriptors into typed handles.
//
// A descriptor names one representation (an entity type) and describes how
// values flow onto it from its counterpart: field mappings, optional fields,
// computed fields, and the buddy link end that points at it. Descriptors are
// plain configuration records, loaded from YAML or CUE, and are resolved once
// at startup against a Registry that catalogs:
//
//   - entity types (name, declared fields, identity policy)
//   - buddy link types (two named ends, each pointing at an entity type)
//   - compute functions referenced by name from fields_funcs
//
// Resolution replaces every string reference with a direct handle, so the
// engine never does string-keyed lookups on the write path. A name that is
// not registered fails with UnknownTypeError; a descriptor that cannot be
// made consistent fails with DescriptorResolutionError.
package descriptor
