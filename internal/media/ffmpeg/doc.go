// Package ffmpeg wraps the ffmpeg invocations used by the synchronization
// engine: audio extraction, silence detection, silence removal, audio
// shaping (delay, time-stretch, padding), clip rendering with frozen-frame
// extension, and concatenation.
//
// Every operation goes through a Runner so tests can capture arguments and
// feed canned stderr without spawning processes. Failures are wrapped as
// services.ErrAssembly with the tail of ffmpeg's stderr.
package ffmpeg
