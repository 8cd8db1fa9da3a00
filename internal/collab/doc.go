// Package collab talks to the external AI collaborators through the OpenAI
// API: Whisper transcription with per-segment timing, chat-model
// translation with diarization and emotion tags, translation condensing,
// and speech synthesis.
//
// Every failure is tagged with services.ErrUpstream (or ErrTimeout,
// ErrConfiguration, ErrCancelled) so callers can decide on retries without
// inspecting OpenAI error types.
package collab
