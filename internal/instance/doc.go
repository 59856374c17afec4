// Package instance owns single-instance coordination.
//
// Ownership boundary:
// - the Idle/Acquiring/Primary/Releasing/Released state machine
// - rollback when a listener cannot start after the lock was granted
// - the stale-primary policy (activation failed -> retry acquisition once)
// - the standalone daemon lifecycle around that machine
//
// Instance does not touch lock or port files directly; that belongs to
// applock and portfile.
package instance
