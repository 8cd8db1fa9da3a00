// Package pipeline orchestrates dubbing jobs end to end.
//
// Ingestion probes the source, extracts and transcribes its audio, enriches
// the transcript, and registers the batched segments. Segment workers then
// synthesize, trim, and reconcile audio concurrently, each delivering its
// result on a per-segment channel. A single timeline.Assembler drains those
// channels in index order, renders clips, and records them in the job store,
// so drift and the ready status have exactly one writer.
//
// Engine tracks running jobs so they can be cancelled, and retries failed
// segments against the drift already committed by their predecessors.
package pipeline
