package site

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Router computes an item's output path from its current state.
// Routers must be deterministic: collision detection relies on it.
type Router func(item *Item) (string, error)

// Route turns a router into a chain step that sets item.Output.
func Route(r Router) Compiler {
	return Step("route", func(_ context.Context, item *Item, _ Dependencies) error {
		out, err := r(item)
		if err != nil {
			return err
		}
		cleaned, err := CleanOutput(out)
		if err != nil {
			return err
		}
		item.Output = cleaned
		return nil
	})
}

// Identity routes an item to its source identifier.
func Identity(item *Item) (string, error) {
	return item.Source, nil
}

// SetExtension replaces the extension of the source identifier.
// An empty ext strips the extension.
func SetExtension(ext string) Router {
	ext = strings.TrimPrefix(ext, ".")
	return func(item *Item) (string, error) {
		base := strings.TrimSuffix(item.Source, path.Ext(item.Source))
		if ext == "" {
			return base, nil
		}
		return base + "." + ext, nil
	}
}

// Static routes every item to the same fixed path. Only useful for rules
// that produce a single item.
func Static(p string) Router {
	return func(*Item) (string, error) {
		return p, nil
	}
}

// Regex routes by matching the source identifier against pattern and
// expanding template with its submatches ($1, ${name}).
func Regex(pattern, template string) (Router, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("route pattern %q: %w", pattern, err)
	}
	return func(item *Item) (string, error) {
		m := re.FindStringSubmatchIndex(item.Source)
		if m == nil {
			return "", fmt.Errorf("source %q does not match route pattern %q", item.Source, pattern)
		}
		return string(re.ExpandString(nil, template, item.Source, m)), nil
	}, nil
}

// MustRegex is like Regex but panics on an invalid pattern.
func MustRegex(pattern, template string) Router {
	r, err := Regex(pattern, template)
	if err != nil {
		panic(err)
	}
	return r
}

// FoldCase wraps r so that the routed path is case-folded. Sources that
// differ only in case route to the same output.
func FoldCase(r Router) Router {
	return func(item *Item) (string, error) {
		out, err := r(item)
		if err != nil {
			return "", err
		}
		// Casers are stateful; one per call.
		return cases.Fold().String(out), nil
	}
}
