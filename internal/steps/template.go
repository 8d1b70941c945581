package steps

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/kiln/internal/site"
)

// TemplateData is the value a template executes against.
type TemplateData struct {
	Item   *site.Item
	Meta   site.Metadata
	Body   template.HTML
	Deps   site.Dependencies
	Page   *site.Page
	Output string
}

// Template renders Body through the html/template file at name, relative
// to the input root. The template is parsed once per resolved path and
// reused by every item of the step.
func Template(name string) site.Compiler {
	var (
		mu    sync.Mutex
		cache = map[string]*template.Template{}
	)
	load := func(item *site.Item) (*template.Template, error) {
		p := filepath.FromSlash(name)
		if item.Env != nil && item.Env.InputRoot != "" {
			p = filepath.Join(item.Env.InputRoot, p)
		}

		mu.Lock()
		defer mu.Unlock()
		if t, ok := cache[p]; ok {
			return t, nil
		}
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		t, err := template.New(filepath.Base(p)).Funcs(templateFuncs).Parse(string(src))
		if err != nil {
			return nil, err
		}
		cache[p] = t
		return t, nil
	}

	return site.Step("template", func(_ context.Context, item *site.Item, deps site.Dependencies) error {
		t, err := load(item)
		if err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
		data := TemplateData{
			Item:   item,
			Meta:   item.Meta,
			Body:   template.HTML(item.Body),
			Deps:   deps,
			Output: item.Output,
		}
		if p, ok := site.PageOf(item); ok {
			data.Page = p
		}

		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return err
		}
		item.Body = buf.Bytes()
		return nil
	})
}

var templateFuncs = template.FuncMap{
	// url turns an output path into a site-absolute URL.
	"url": func(output string) string {
		return "/" + strings.TrimPrefix(output, "/")
	},
	"meta": func(item *site.Item, key string) string {
		s, _ := item.Meta.String(key)
		return s
	},
}
