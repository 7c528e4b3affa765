package provider

import "strings"

const (
	promptDetailed = "Describe this image in detail. Mention the setting, any people and what " +
		"they are doing, notable objects, and visible text. Be specific and factual."
	promptConcise   = "Describe this image in one or two sentences covering the subject and setting."
	promptNarrative = "Describe this image as a short narrative caption suitable for a photo album, " +
		"written in plain language."
)

// PromptText resolves the prompt sent with each describe call. A non-empty
// custom prompt wins; otherwise the style name selects a built-in prompt,
// falling back to the detailed style for unknown names.
func PromptText(style, custom string) string {
	if trimmed := strings.TrimSpace(custom); trimmed != "" {
		return trimmed
	}
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "concise":
		return promptConcise
	case "narrative":
		return promptNarrative
	default:
		return promptDetailed
	}
}
