// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes ffprobe and returns a parsed Result; Prober adds an
// injectable command runner and the duration lookups the pipeline needs to
// measure source media and synthesized audio.
package ffprobe
