// Package services defines shared utilities consumed by the pipeline stages
// and the external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, segment indexes, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into retryable and terminal, and map them to segment statuses.
//   - A bounded retry helper with exponential backoff used for upstream and
//     assembly failures.
package services
