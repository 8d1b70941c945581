package steps

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/kiln/internal/site"
)

// Read loads the item's input file into Body.
func Read() site.Compiler {
	return site.Step("read", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		data, err := os.ReadFile(item.InputPath())
		if err != nil {
			return err
		}
		item.Body = data
		return nil
	})
}

// Write stores Body at the item's output path. The path is claimed in the
// build's output ledger first, so a second item routed to the same path
// fails with a collision instead of overwriting the first. An item that
// was never routed has nowhere to go and is left unwritten.
func Write() site.Compiler {
	return site.Step("write", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		if item.Output == "" {
			return nil
		}
		dst, err := claim(item)
		if err != nil {
			return err
		}
		return writeFile(dst, item.Body)
	})
}

// Copy streams the input file to the output path without loading it into
// Body. Output claiming and unrouted items work as in Write.
func Copy() site.Compiler {
	return site.Step("copy", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		if item.Output == "" {
			return nil
		}
		dst, err := claim(item)
		if err != nil {
			return err
		}
		src, err := os.Open(item.InputPath())
		if err != nil {
			return err
		}
		defer src.Close()

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		f, err := os.Create(dst)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, src); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

// Print writes Body to w followed by a newline. Writes from concurrent
// items do not interleave.
func Print(w io.Writer) site.Compiler {
	var mu sync.Mutex
	return site.Step("print", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		mu.Lock()
		defer mu.Unlock()
		if _, err := w.Write(item.Body); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	})
}

// claim resolves the destination of item and records it in the ledger.
func claim(item *site.Item) (string, error) {
	dst, err := item.OutputPath()
	if err != nil {
		return "", err
	}
	if item.Env != nil && item.Env.Outputs != nil {
		if err := item.Env.Outputs.Claim(item); err != nil {
			return "", err
		}
	}
	return dst, nil
}

// writeFile writes data through a temp file in the destination directory
// and renames it into place, so a failed build never leaves half a file.
func writeFile(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".kiln-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
