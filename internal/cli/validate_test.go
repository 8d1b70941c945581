package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidDefinition(t *testing.T) {
	dir := newSite(t, notesSite, nil)

	out, _, err := execute(t, "-C", dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "2 rule(s)")
}

func TestValidateValidDefinitionJSON(t *testing.T) {
	dir := newSite(t, notesSite, nil)

	out, _, err := execute(t, "--format", "json", "-C", dir, "validate")
	require.NoError(t, err)

	var result ValidationResult
	decodeData(t, out, &result)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Rules)
	assert.Equal(t, [][]string{{"notes"}, {"feed"}}, result.Levels)
	assert.Empty(t, result.Errors)
}

func TestValidateExplicitPath(t *testing.T) {
	dir := newSite(t, notesSite, nil)
	other := filepath.Join(t.TempDir(), "other.cue")
	require.NoError(t, os.WriteFile(other, []byte(`rule: home: {create: "index.html", steps: ["write"]}`), 0o644))

	out, _, err := execute(t, "-C", dir, "validate", other)
	require.NoError(t, err)
	assert.Contains(t, out, "other.cue: 1 rule(s)")
}

func TestValidateMissingDefinition(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "input"), 0o755))

	out, _, err := execute(t, "-C", dir, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
	assert.Contains(t, out, "definition not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	dir := newSite(t, notesSite, nil)

	_, _, err := execute(t, "-C", dir, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateCycle(t *testing.T) {
	def := `rule: a: {
	create:     "a.html"
	depends_on: ["b"]
	steps:      ["write"]
}
rule: b: {
	create:     "b.html"
	depends_on: ["a"]
	steps:      ["write"]
}
`
	dir := newSite(t, def, nil)

	out, _, err := execute(t, "-C", dir, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "cycle: a -> b -> a")
}

func TestValidateReportsEveryError(t *testing.T) {
	def := `rule: posts: {
	match: "*.md"
	steps: ["read", "no_such_step"]
}
rule: index: {
	create:     "index.html"
	depends_on: ["missing"]
	steps:      ["write"]
}
`
	dir := newSite(t, def, nil)

	out, _, err := execute(t, "--format", "json", "-C", dir, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "2 validation error(s)")
}

func TestValidateSyntaxError(t *testing.T) {
	dir := newSite(t, "rule: posts: {match: ", nil)

	out, _, err := execute(t, "-C", dir, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "1 error(s)")
}
