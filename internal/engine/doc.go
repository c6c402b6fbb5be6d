// Package engine implements the lifecycle interceptor and sync orchestrator.
//
// Every Save or Delete of a record runs the record type's hooks around the
// base write:
//
//	preSave(update, target) → base write → postSave(update, target)   if preSave said proceed
//	preDelete(target)       → base delete → postDelete(target)         if preDelete said proceed
//
// The default hooks (ModelSync) propagate a write to the counterpart
// representation: postSave projects the record through its descriptor pair
// and creates or updates the counterpart, linking both through a buddy
// link; preDelete deletes the counterpart first. Counterpart writes carry
// the target marker and never propagate further, so every originating write
// causes at most one counterpart hop.
//
// ERROR POLICY:
//
// Strict (default): a hook error aborts the call and rolls back the
// top-level transaction, base write included.
//
// Bulk (WithBulkMode): each hook body runs in a savepoint. A failing hook is
// rolled back to its savepoint, logged and treated as "do not propagate";
// the base write is kept.
//
// TRANSACTIONS:
//
// A top-level Save or Delete opens one store transaction and one chain id;
// nested writes issued by hooks join both through the context.
package engine
