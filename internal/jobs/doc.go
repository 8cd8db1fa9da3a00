// Package jobs persists dubbing jobs and their per-segment records in SQLite.
//
// Segment status only moves forward: pending -> processing -> ready or
// failed, with cancelled reachable from pending and processing. The one
// sanctioned step back is an explicit retry of a failed segment, which
// returns it to pending and bumps its attempt counter. Every transition is
// a guarded UPDATE so a stale writer receives ErrInvalidTransition instead
// of silently regressing a record.
//
// Job status is never stored. It is derived on read from the segment
// counts, the job lifecycle column, and the configured failure policy.
//
// When schema.sql changes, bump schemaVersion in schema.go.
package jobs
