// Package store provides SQLite-backed storage for the graph the reasoner
// queries.
//
// The store holds:
//   - Types and the roles relations declare
//   - Rules, as query-language text
//   - Things: entities, relations and attributes, keyed by instance id
//   - Ownerships and role players connecting things
//   - Explanations recorded for inferred facts
//
// # Conventions
//
// Writes are idempotent: every insert uses ON CONFLICT DO NOTHING, so
// loading the same data twice leaves the store unchanged.
//
// Reads are deterministic: every query orders by a unique key with
// COLLATE BINARY.
//
// Attribute instance ids are content-addressed (ir.AttributeIID), so the
// same value of the same type is always the same thing.
//
// # Database Configuration
//
// Open sets WAL journaling, synchronous=NORMAL, a five second busy timeout
// and foreign keys, and fails if a checked pragma does not take. Stores
// written by older releases are migrated in order; user_version records
// the last migration applied.
package store
