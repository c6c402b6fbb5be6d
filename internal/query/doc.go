// Package query provides the record filter representation shared by
// descriptor scopes, backfills and the SQLite store.
//
// A Select names one entity type and an optional Predicate over record
// fields. The same Select can be compiled to parameterized SQL against the
// records table (Compile) or evaluated against an in-memory record
// (Matches). Both paths agree on every predicate, so a scope applied in SQL
// hides exactly the records the scope hides in memory.
//
// PREDICATES:
//
//   - Equals: the field is present with this scalar value
//   - Absent: the field is unset or null
//   - Live: the record is not soft-deleted (see ir.SoftDeleteField)
//   - And: all predicates hold; empty means always true
//
// Field values live in the JSON fields column. Predicates read them through
// json_type and json_extract, so a string "1" never matches the integer 1
// and booleans never match integers.
//
// SEALED INTERFACE:
//
// Predicate is sealed with a marker method. Only types in this package
// implement it, which keeps the type switches in Compile and Matches
// exhaustive.
//
// Every compiled query orders by id COLLATE BINARY so results are
// deterministic. Values and JSON paths are always bound as parameters,
// never interpolated.
package query
