package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"no fence is trimmed", "  \n x := 1\n\n", "x := 1"},
		{"inline fence", "pre ```CODE``` post", "CODE"},
		{"multiple blocks joined by blank line", "```A``` text ```B```", "A\n\nB"},
		{"bare fenced block", "```\nprint('hi')  # typed\n```", "print('hi')  # typed"},
		{"language tag dropped", "Here you go:\n```python\ndef f():\n    return 1\n```\nDone.", "def f():\n    return 1"},
		{"tag with symbols dropped", "```c++\nint main() {}\n```", "int main() {}"},
		{"blank lines around code trimmed", "```go\n\n\nfunc f() {}\n\n```", "func f() {}"},
		{"indentation of first line kept", "```\n    indented()\n    more()\n```", "    indented()\n    more()"},
		{"code on opening line kept", "```x = 1\ny = 2\n```", "x = 1\ny = 2"},
		{"explanation plus code plus alternative", "Fix:\n```py\na = 1\n```\nOr:\n```py\na = 2\n```", "a = 1\n\na = 2"},
		{"unclosed fence runs to end", "```go\npackage main\n", "package main"},
		{"empty reply", "", ""},
		{"whitespace reply", " \n\t ", ""},
		{"empty block", "``````", ""},
		{"longer fence wraps inner fence", "Here:\n````markdown\n# Doc\n```go\nx := 1\n```\n````\nDone.", "# Doc\n```go\nx := 1\n```"},
		{"longer fence without tag", "````\nuse ```x``` here\n````", "use ```x``` here"},
		{"longer fence then normal block", "````\na ``` b\n````\nand\n```py\nc\n```", "a ``` b\n\nc"},
		{"closing run may be longer", "```\na\n`````", "a"},
		{"unclosed longer fence ignores shorter runs", "````go\nx := 1\n```\n", "x := 1\n```"},
		{"lone word with nothing after is code", "```pass\n```", "pass"},
		{"lone known language with nothing after is a tag", "```go\n```", ""},
		{"lone word followed by code is a tag", "```pass\nx = 1\n```", "x = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.raw))
		})
	}
}
