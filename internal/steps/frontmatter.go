package steps

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kiln/internal/site"
)

type frontMatterFormat struct {
	delim     string
	name      string
	unmarshal func([]byte, any) error
}

var frontMatterFormats = []frontMatterFormat{
	{delim: "---", name: "yaml", unmarshal: yaml.Unmarshal},
	{delim: "+++", name: "toml", unmarshal: toml.Unmarshal},
}

// FrontMatter parses a leading metadata block into Meta and strips it from
// Body. A block opens on the first line with "---" (YAML) or "+++" (TOML)
// and closes at the next line holding the same delimiter. Items without a
// block pass through unchanged.
func FrontMatter() site.Compiler {
	return site.Step("front_matter", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		meta, body, err := SplitFrontMatter(item.Body)
		if err != nil {
			return err
		}
		if meta == nil {
			return nil
		}
		if item.Meta == nil {
			item.Meta = site.Metadata{}
		}
		for k, v := range meta {
			item.Meta[k] = v
		}
		item.Body = body
		return nil
	})
}

// SplitFrontMatter separates a front matter block from the content that
// follows it. meta is nil when data has no block.
func SplitFrontMatter(data []byte) (meta map[string]any, body []byte, err error) {
	for _, f := range frontMatterFormats {
		first, rest, ok := cutLine(data)
		if !ok || string(first) != f.delim {
			continue
		}

		var block []byte
		for {
			line, next, ok := cutLine(rest)
			if string(line) == f.delim {
				body = next
				break
			}
			if !ok {
				return nil, nil, fmt.Errorf("unterminated %s front matter", f.name)
			}
			block = append(block, line...)
			block = append(block, '\n')
			rest = next
		}

		meta = map[string]any{}
		if err := f.unmarshal(block, &meta); err != nil {
			return nil, nil, fmt.Errorf("%s front matter: %w", f.name, err)
		}
		return meta, body, nil
	}
	return nil, data, nil
}

// cutLine splits off the first line, dropping its terminator ("\n" or
// "\r\n"). ok is false when data holds no line terminator.
func cutLine(data []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return bytes.TrimSuffix(data, []byte("\r")), nil, false
	}
	return bytes.TrimSuffix(data[:i], []byte("\r")), data[i+1:], true
}
