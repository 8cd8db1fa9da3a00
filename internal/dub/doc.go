// Package dub defines the data model shared by the synchronization engine:
// transcript spans, dubbing segments, voice profiles, synthesized audio,
// sync decisions, rendered clips, and the closed enums (mode, gender,
// strategy, segment and job status) that flow between components.
//
// Durations are carried as float64 milliseconds so the reconciler can keep
// sub-millisecond precision; helpers convert to time.Duration at the edges.
package dub
