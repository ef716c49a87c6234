// Package store provides SQLite-backed durable storage for gym projections,
// trainers, creatures, memberships and the append-only gym event log.
//
// # Tables
//
//   - trainers, creatures: keyed by natural id, upserted last-write-wins
//   - gyms: one current-state row per gym id, overwritten wholesale
//   - memberships: the current garrison of each gym, replaced per pass
//   - gym_events: append-only; UPDATE and DELETE are rejected by triggers
//
// # Write units
//
// ApplyGymPass writes a gym's events, its projection and its membership set
// in a single transaction, so a reader never observes a refreshed projection
// with stale memberships or the reverse.
//
// Upserts use ON CONFLICT ... DO UPDATE rather than INSERT OR REPLACE:
// replacing a gym row would delete it first and break the event log's
// foreign key.
//
// # Ordering
//
// Event reads are ordered by insertion id, which preserves the order in which
// a pass emitted them. Presentation queries break ties on the natural key
// (COLLATE BINARY) so results are deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
