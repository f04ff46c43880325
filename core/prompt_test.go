package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiagomed/codewizard/errs"
)

func TestBuildDefaultsToImproveWhenSourceGiven(t *testing.T) {
	b := NewPromptBuilder()
	for _, src := range []string{"print('hi')", "x", "package main\n\nfunc main() {}\n"} {
		req, err := b.Build(src, "", "")
		require.NoError(t, err)
		assert.NotEmpty(t, req.Instruction)
		assert.Contains(t, req.Instruction, "make improvements")
		assert.Equal(t, src, req.SourceText)
	}
}

func TestBuildDefaultsToCreateWithoutSource(t *testing.T) {
	req, err := NewPromptBuilder().Build("", "", "go")
	require.NoError(t, err)
	assert.Equal(t, DefaultCreateInstruction, req.Instruction)
	assert.False(t, req.HasSource())
	assert.Equal(t, "go", req.Language)
}

func TestBuildKeepsUserInstructionVerbatim(t *testing.T) {
	b := NewPromptBuilder()
	for _, instr := range []string{
		"add type hints",
		"  leading and trailing spaces  ",
		"multi\nline\ninstruction",
		"use ```fences``` in docs",
	} {
		withSource, err := b.Build("print('hi')", instr, "python")
		require.NoError(t, err)
		assert.Equal(t, instr, withSource.Instruction)

		scratch, err := b.Build("", instr, "")
		require.NoError(t, err)
		assert.Equal(t, instr, scratch.Instruction)
	}
}

func TestBuildBlankInstructionFallsBackToDefault(t *testing.T) {
	req, err := NewPromptBuilder().Build("code", "   ", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultImproveInstruction, req.Instruction)
}

func TestBuildWithoutCreatePolicyIsConfigurationError(t *testing.T) {
	b := &PromptBuilder{ImproveInstruction: DefaultImproveInstruction}
	_, err := b.Build("", "", "")
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	req, err := b.Build("", "write a parser", "")
	require.NoError(t, err)
	assert.Equal(t, "write a parser", req.Instruction)
}

func TestLanguageFromPath(t *testing.T) {
	assert.Equal(t, "python", LanguageFromPath("src/app.py"))
	assert.Equal(t, "go", LanguageFromPath("main.GO"))
	assert.Equal(t, "typescript", LanguageFromPath("ui/App.tsx"))
	assert.Equal(t, "", LanguageFromPath("Makefile"))
	assert.Equal(t, "", LanguageFromPath("notes.xyz"))
}
