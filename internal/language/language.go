package language

import (
	"fmt"
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize returns the canonical form of tag, e.g. "AR-eg" -> "ar-EG".
func Normalize(tag string) (string, error) {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return "", fmt.Errorf("language tag is empty")
	}
	parsed, err := xlang.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("language tag %q: %w", tag, err)
	}
	return parsed.String(), nil
}

// Base returns the base language subtag, e.g. "ar-EG" -> "ar". Unparseable
// input yields "und".
func Base(tag string) string {
	parsed, err := xlang.Parse(strings.TrimSpace(tag))
	if err != nil {
		return "und"
	}
	base, _ := parsed.Base()
	return base.String()
}

// DisplayName returns the English name of the base language, or the
// uppercased input when the tag is unknown.
func DisplayName(tag string) string {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return "Unknown"
	}
	parsed, err := xlang.Parse(trimmed)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	base, _ := parsed.Base()
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// Label formats a tag for prompts and messages: "Spanish (es-MX)".
func Label(tag string) string {
	trimmed := strings.TrimSpace(tag)
	name := DisplayName(trimmed)
	if trimmed == "" || strings.EqualFold(name, trimmed) {
		return name
	}
	return name + " (" + trimmed + ")"
}
