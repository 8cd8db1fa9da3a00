// Package syncer decides how a segment's synthesized audio is fitted into its
// original slot.
//
// Decide is a pure function of (slot duration, trimmed audio duration) and the
// policy. Given ratio = trimmed / slot:
//
//	ratio <= 1            PAD            pad = slot - trimmed
//	1 < ratio <= cap      SPEEDUP        speed = ratio
//	ratio > cap           FREEZE_EXTEND  speed = cap, freeze = trimmed/cap - slot
//
// The speed factor always lies in [1, cap]. Non-positive or non-finite inputs
// are rejected as validation errors so the segment fails fast.
package syncer
