// Package language normalizes BCP-47 target language tags and names them
// for prompts and messages.
package language
