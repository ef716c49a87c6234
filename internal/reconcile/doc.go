// Package reconcile runs reconciliation passes over batches of observed gyms.
//
// For every record in a batch the Reconciler, independently of the other
// records:
//
//  1. parses and validates the record (malformed records are skipped),
//  2. loads the stored projection and its member names,
//  3. diffs the observation against them,
//  4. appends the events, upserts the projection and replaces the gym's
//     memberships in one store transaction.
//
// Trainers and creatures seen in successfully reconciled gyms are
// deduplicated across the whole batch and upserted once at the end.
//
// Faults never abort the batch. They are collected in Summary.Failures and
// the caller decides whether to retry.
package reconcile
