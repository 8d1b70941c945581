package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kiln/internal/config"
)

// WriteTree creates files under root. Keys are slash-separated paths.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// ReadTree returns every regular file under root keyed by slash-separated
// relative path. A missing root gives an empty map.
func ReadTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return out
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// Project is a throwaway site directory with separate input and output
// roots.
type Project struct {
	Dir    string
	Input  string
	Output string
}

// NewProject creates a project in a temp dir and writes files into its
// input root.
func NewProject(t *testing.T, files map[string]string) *Project {
	t.Helper()
	dir := t.TempDir()
	p := &Project{
		Dir:    dir,
		Input:  filepath.Join(dir, "input"),
		Output: filepath.Join(dir, "output"),
	}
	require.NoError(t, os.MkdirAll(p.Input, 0o755))
	WriteTree(t, p.Input, files)
	return p
}

// Config returns a validated default configuration for the project.
func (p *Project) Config(t *testing.T) *config.Configuration {
	t.Helper()
	cfg := config.New(p.Input, p.Output)
	require.NoError(t, cfg.Validate())
	return cfg
}

// Outputs reads back everything written to the output root.
func (p *Project) Outputs(t *testing.T) map[string]string {
	t.Helper()
	return ReadTree(t, p.Output)
}
