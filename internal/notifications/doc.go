// Package notifications delivers job events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Individual event families can be muted
// through the [notifications] config section.
package notifications
