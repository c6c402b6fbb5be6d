// Package harness runs verification scenarios against the sync engine.
//
// A scenario loads a descriptor config, drives create, update, delete and
// backfill steps through a fresh engine, and then asserts that records and
// their counterparts agree.
//
// # Scenario Format
//
//	name: postcode_roundtrip
//	description: "A postcode edit reaches the new address"
//	config: ../config/address.yaml
//	steps:
//	  - op: create
//	    type: legacy_address
//	    ref: home
//	    fields: { street: "Main 1", postcode: "10696" }
//	    counterpart: home_new
//	  - op: update
//	    ref: home
//	    fields: { postcode: "20095" }
//	assertions:
//	  - type: in_sync
//	    ref: home
//	  - type: fields
//	    ref: home_new
//	    expect: { zip_code: "20095" }
//	  - type: count
//	    link: address_buddy
//	    count: 1
//
// Steps accept target and bulk flags, a suppress list of entity types whose
// hooks are skipped, and expect_error with a sync error code.
//
// # Assertion Types
//
//   - in_sync: every mapped field equals its counterpart's (CheckInSync)
//   - linked, unlinked: whether the record has a counterpart
//   - missing: the record is no longer stored
//   - count: stored records of an entity type, or links of a link type
//   - fields: stored field values (subset match)
//   - trace_count: engine trace events with a given op
//   - idempotent: two projections of the record digest the same
//
// Records updated through a read-only descriptor are not verified by
// in_sync.
//
// # Deterministic Testing
//
// Every run uses an in-memory SQLite store, sequential record and chain ids
// and a step clock behind the "now" compute function, so the trace and
// final records can be compared against golden files (RunWithGolden).
package harness
