package core

import (
	"path/filepath"
	"strings"

	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/llm"
)

const (
	// DefaultImproveInstruction is used when existing code is given without an instruction.
	DefaultImproveInstruction = "Look at the code included below and make improvements in terms of better maintenance and readability. Review and improve it for correctness, clarity, and idiomatic style."
	// DefaultCreateInstruction is used when neither code nor an instruction is given.
	DefaultCreateInstruction = "Write new code satisfying common best practices: clear structure, meaningful names, error handling, and brief documentation."
)

// PromptBuilder turns optional source text and an optional instruction into a request.
type PromptBuilder struct {
	ImproveInstruction string
	// CreateInstruction is the from-scratch policy. When empty, a request
	// with neither source nor instruction is rejected.
	CreateInstruction string
}

// NewPromptBuilder returns a builder with the default instructions.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		ImproveInstruction: DefaultImproveInstruction,
		CreateInstruction:  DefaultCreateInstruction,
	}
}

// Build assembles a request. A non-blank instruction is used verbatim.
func (b *PromptBuilder) Build(sourceText, instruction, language string) (llm.Request, error) {
	req := llm.Request{
		SourceText:  sourceText,
		Instruction: instruction,
		Language:    language,
	}
	if strings.TrimSpace(instruction) != "" {
		return req, nil
	}

	if req.HasSource() {
		req.Instruction = b.ImproveInstruction
	} else {
		req.Instruction = b.CreateInstruction
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return llm.Request{}, errs.Errorf(errs.Configuration, "build prompt", "no instruction given and no default applies")
	}
	return req, nil
}

var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".mjs":   "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "bash",
	".bash":  "bash",
	".sql":   "sql",
	".lua":   "lua",
	".r":     "r",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".html":  "html",
	".css":   "css",
}

// LanguageFromPath guesses a language hint from a file extension.
// It returns "" when the extension is unknown.
func LanguageFromPath(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}
