// Package repositories implements SQLite persistence for the delivery log.
//
// [DeliveryRepository] implements models.Repository[*models.Delivery]: one row per inbound webhook,
// with the processing outcome, the CRM identifiers it produced and the raw payload for replay.
// Deleted deliveries are soft-deleted via deleted_at and excluded from queries.
//
// Sequence numbers provide stable, human-readable ordering (e.g., delivery #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
