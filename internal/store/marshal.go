package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/autosync/internal/ir"
)

// marshalFields converts a record's fields to canonical JSON TEXT.
// Canonical form keeps stored bytes stable across rewrites of equal values.
func marshalFields(fields ir.IRObject) (string, error) {
	if fields == nil {
		fields = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses stored JSON TEXT into an IRObject.
// Uses ir.IRObject.UnmarshalJSON, which decodes numbers through json.Number
// to avoid float64 precision loss for values > 2^53.
func unmarshalFields(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return obj, nil
}
