package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUpstream      = errors.New("upstream failure")
	ErrAssembly      = errors.New("assembly failure")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrDriftCeiling  = errors.New("drift ceiling exceeded")
	ErrCancelled     = errors.New("cancelled")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether a failed attempt may be repeated.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrDriftCeiling):
		return false
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrAssembly),
		errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}

// IsCancelled reports whether err stems from job cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Kind returns a short classification label for logs and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsCancelled(err):
		return "cancelled"
	case errors.Is(err, ErrDriftCeiling):
		return "drift_ceiling"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrAssembly):
		return "assembly"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
