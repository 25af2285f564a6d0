package llm

import (
	"strings"
)

// promptPreamble keeps replies usable for speech synthesis: short,
// plain sentences, no markdown.
const promptPreamble = "You are a helpful voice assistant. Keep your replies concise, " +
	"conversational and suitable for being read aloud. Do not use markdown, " +
	"lists or code blocks."

// promptDirective asks for the assistant's next turn after the rendered
// history.
const promptDirective = "Assistant:"

// BuildPrompt renders a conversation window into a single prompt. Each
// message becomes "<Role>: <content>" with the role capitalized,
// oldest first, between the instruction preamble and the closing
// directive.
func BuildPrompt(window []Message) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")

	for _, m := range window {
		b.WriteString(capitalize(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	b.WriteString(promptDirective)
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
