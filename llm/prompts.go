package llm

import (
	"fmt"
	"strings"
)

func getSystemPrompt(language string) string {
	if language == "" {
		language = "software"
	}
	return fmt.Sprintf(`You are an expert %s developer with extensive experience in software development and design. Your role is to produce accurate, practical, maintainable code that follows the best practices of its ecosystem.

Return the complete resulting code inside fenced code blocks delimited by triple backticks. Do not return partial snippets or diffs. Keep any explanation outside the code blocks and keep it short.`, language)
}

// Prompt renders the request as the single user message sent to a backend.
// Existing code is set off from the instruction by headings and a fence
// longer than any backtick run inside the code.
func (r Request) Prompt() string {
	if !r.HasSource() {
		return r.Instruction
	}

	fence := strings.Repeat("`", max(3, longestRun(r.SourceText, '`')+1))
	source := strings.TrimRight(r.SourceText, "\n")

	var b strings.Builder
	b.WriteString("### Instruction\n")
	b.WriteString(r.Instruction)
	b.WriteString("\n\n### Existing code\n")
	b.WriteString(fence)
	b.WriteString(r.Language)
	b.WriteString("\n")
	b.WriteString(source)
	b.WriteString("\n")
	b.WriteString(fence)
	b.WriteString("\n")
	return b.String()
}

func longestRun(s string, c rune) int {
	longest, cur := 0, 0
	for _, r := range s {
		if r == c {
			cur++
			if cur > longest {
				longest = cur
			}
			continue
		}
		cur = 0
	}
	return longest
}
