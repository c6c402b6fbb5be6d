// Package projector builds the field values a target record receives from a
// source record.
//
// Projection is a pure function of the source record and the descriptor
// pair: mapped fields are copied first, then computed fields are applied in
// declaration order, overwriting mapped values on key collision. Nothing is
// read from or written to storage.
package projector
