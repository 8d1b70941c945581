// Package source lists the input identifiers a build can select from.
//
// Identifiers are slash-separated paths relative to the input root,
// normalized to Unicode NFC so that the same name typed on different
// platforms selects the same item.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/unicode/norm"
)

// Ignore reports whether an identifier is excluded from every rule.
type Ignore func(id string) bool

// None ignores nothing.
func None(string) bool { return false }

// DefaultIgnorePatterns excludes dot-files, emacs autosave and lock files,
// backup files and vim swap files.
var DefaultIgnorePatterns = []string{`^\.`, `^#`, `~$`, `\.swp$`}

// CompileIgnore builds an Ignore from regular expressions. Each pattern is
// tested against every path segment's base name, so `^\.` excludes both
// ".git/config" and "posts/.draft.md".
func CompileIgnore(patterns []string) (Ignore, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	if len(res) == 0 {
		return None, nil
	}
	return func(id string) bool {
		for _, seg := range strings.Split(id, "/") {
			for _, re := range res {
				if re.MatchString(seg) {
					return true
				}
			}
		}
		return false
	}, nil
}

// Glob returns a predicate matching identifiers against a doublestar
// pattern ("posts/*.md", "**/*.css"). The pattern must be valid.
func Glob(pattern string) (func(string) bool, error) {
	pattern = Normalize(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	return func(id string) bool {
		ok, _ := doublestar.Match(pattern, id)
		return ok
	}, nil
}

// MustGlob is like Glob but panics on an invalid pattern.
func MustGlob(pattern string) func(string) bool {
	g, err := Glob(pattern)
	if err != nil {
		panic(err)
	}
	return g
}

// Normalize converts a path to a slash-separated NFC identifier.
func Normalize(p string) string {
	return norm.NFC.String(filepath.ToSlash(p))
}

// Walk lists every regular file under root as an identifier, skipping
// ignored entries (an ignored directory is not descended into). The result
// is sorted.
func Walk(root string, ignore Ignore) ([]string, error) {
	if ignore == nil {
		ignore = None
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input root %s is not a directory", root)
	}

	var ids []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		id := Normalize(rel)
		if ignore(id) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(ids)
	return ids, nil
}
