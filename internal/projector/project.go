package projector

import (
	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/ir"
)

// Project computes the target field values for src under pair.
//
// Fields are looked up through pair.Source.Type so that a declared but
// unset field counts as present (null) while an undeclared one is absent.
// The returned object is newly allocated; src is not modified.
func Project(src *ir.Record, pair descriptor.Pair) (ir.IRObject, error) {
	return project(src, pair, true)
}

// Digest returns the projection digest of src under pair, leaving out
// volatile compute functions. It is stable for an unchanged source.
func Digest(src *ir.Record, pair descriptor.Pair) (string, error) {
	out, err := project(src, pair, false)
	if err != nil {
		return "", err
	}
	return ir.ProjectionDigest(out)
}

func project(src *ir.Record, pair descriptor.Pair, withVolatile bool) (ir.IRObject, error) {
	srcType, target := pair.Source.Type, pair.Target
	out := make(ir.IRObject, len(target.Mapping)+len(target.Funcs))

	for _, m := range target.Mapping {
		got, err := srcType.Lookup(src, m.Source)
		if err != nil {
			return nil, &MappingError{Descriptor: target.Name, SourceRef: src.Ref(), Field: m.Source, Err: err}
		}
		if got.State == ir.Absent {
			if target.IsOptional(m.Source) {
				continue
			}
			return nil, &MappingError{Descriptor: target.Name, SourceRef: src.Ref(), Field: m.Source}
		}
		out[m.Target] = got.Value
	}

	for _, f := range target.Funcs {
		if f.Volatile && !withVolatile {
			continue
		}
		if f.Optional {
			got, err := srcType.Lookup(src, f.DependsOn)
			if err != nil {
				return nil, &MappingError{Descriptor: target.Name, SourceRef: src.Ref(), Field: f.Key, Func: f.Name, Err: err}
			}
			if got.State == ir.Absent {
				continue
			}
		}
		v, err := f.Fn(src)
		if err != nil {
			return nil, &MappingError{Descriptor: target.Name, SourceRef: src.Ref(), Field: f.Key, Func: f.Name, Err: err}
		}
		if v == nil {
			v = ir.IRNull{}
		}
		out[f.Key] = v
	}

	return out, nil
}
