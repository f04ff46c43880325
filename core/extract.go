package core

import "strings"

const fence = "```"

// ExtractCode isolates the code in a model reply. Every fenced block is
// collected in order and the blocks are joined by one blank line. A block
// opened by n backticks is closed only by a run of at least n, so a longer
// fence can wrap code that contains shorter ones. A reply without a fence is
// returned trimmed. An opening fence with no closing fence runs to the end
// of the reply.
func ExtractCode(raw string) string {
	var blocks []string
	rest := raw
	for {
		start := strings.Index(rest, fence)
		if start < 0 {
			break
		}
		n := backtickRun(rest[start:])
		rest = rest[start+n:]

		end, closeLen := closingFence(rest, n)
		if end < 0 {
			blocks = append(blocks, cleanBlock(rest))
			break
		}
		blocks = append(blocks, cleanBlock(rest[:end]))
		rest = rest[end+closeLen:]
	}

	if len(blocks) == 0 {
		return strings.TrimSpace(raw)
	}
	return strings.Join(blocks, "\n\n")
}

func backtickRun(s string) int {
	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	return n
}

// closingFence finds the first run of at least n backticks in s and returns
// its offset and length, or -1 when there is none.
func closingFence(s string, n int) (int, int) {
	for i := 0; i < len(s); {
		if s[i] != '`' {
			i++
			continue
		}
		run := backtickRun(s[i:])
		if run >= n {
			return i, run
		}
		i += run
	}
	return -1, 0
}

// cleanBlock drops the info string of a multi-line block and trims blank lines.
// A lone word on the opening line counts as a language tag only when code
// follows it or it names a known language; "```pass\n```" keeps "pass".
func cleanBlock(body string) string {
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		tag := strings.TrimRight(body[:nl], " \t\r")
		rest := body[nl+1:]
		if isInfoString(tag) && (strings.TrimSpace(rest) != "" || knownLanguage(tag)) {
			body = rest
		}
	}
	return trimBlankLines(body)
}

// isInfoString reports whether the text right after an opening fence looks
// like a language tag such as "python" or "c++" rather than code.
func isInfoString(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("+-#._", r):
		default:
			return false
		}
	}
	return true
}

func knownLanguage(tag string) bool {
	tag = strings.ToLower(tag)
	if tag == "" {
		return true
	}
	for ext, lang := range extLanguages {
		if tag == lang || tag == strings.TrimPrefix(ext, ".") {
			return true
		}
	}
	return false
}

func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 1 {
		return strings.TrimSpace(lines[0])
	}
	return strings.Join(lines, "\n")
}
