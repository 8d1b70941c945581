package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiln/internal/compiler"
)

func TestLoadSite_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "site.cue")
	require.NoError(t, os.WriteFile(p, []byte(notesSite), 0o644))

	result, err := LoadSite(p)
	require.NoError(t, err)
	assert.Equal(t, p, result.Path)
	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Definition.Rules, 2)
	assert.Equal(t, "notes", result.Definition.Rules[0].Name)
}

func TestLoadSite_DirectoryUnifiesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.cue"), []byte(`rule: notes: {
	match: "notes/*.md"
	steps: ["read", "write"]
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed.cue"), []byte(`rule: feed: {
	create:     "feed.xml"
	depends_on: ["notes"]
	steps:      ["write"]
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not cue"), 0o644))

	result, err := LoadSite(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FileCount)
	assert.Len(t, result.Definition.Rules, 2)
}

func TestLoadSite_DirectoryWithPackageClause(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.cue"), []byte(`package site

rule: notes: {
	match: "notes/*.md"
	steps: ["read", "write"]
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed.cue"), []byte(`package site

rule: feed: {
	create:     "feed.xml"
	depends_on: ["notes"]
	steps:      ["write"]
}
`), 0o644))

	result, err := LoadSite(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FileCount)
	assert.Len(t, result.Definition.Rules, 2)
}

func TestLoadSite_NotFound(t *testing.T) {
	_, err := LoadSite(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
	assert.Equal(t, 0, loadErr.Line())
}

func TestLoadSite_EmptyDirectory(t *testing.T) {
	_, err := LoadSite(t.TempDir())
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}

func TestLoadSite_CompileErrorHasPosition(t *testing.T) {
	p := filepath.Join(t.TempDir(), "site.cue")
	require.NoError(t, os.WriteFile(p, []byte("rule: posts: {\n\tmatch: 42\n\tsteps: []\n}\n"), 0o644))

	_, err := LoadSite(p)
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.NotEqual(t, ErrCodeNotFound, loadErr.Code)
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.cue", "a.cue", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.cue"), 0o755))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue"), filepath.Join(dir, "b.cue")}, files)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"cue", ErrCodeBuildFailed},
		{"match", compiler.ErrRuleModeInvalid},
		{"create", compiler.ErrRuleModeInvalid},
		{"per_page", compiler.ErrPaginateSpec},
		{"from", compiler.ErrPaginateSpec},
		{"whatever", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeNotFound, Message: "definition not found: site.cue"}
	assert.Equal(t, "E005: definition not found: site.cue", err.Error())
}
