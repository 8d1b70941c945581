package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiln/internal/site"
)

func TestSplitFrontMatter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantMeta map[string]any
		wantBody string
		wantErr  string
	}{
		{
			name:     "yaml",
			input:    "---\ntitle: Hello\ndraft: true\n---\nbody text\n",
			wantMeta: map[string]any{"title": "Hello", "draft": true},
			wantBody: "body text\n",
		},
		{
			name:     "toml",
			input:    "+++\ntitle = \"Hello\"\nweight = 3\n+++\nbody\n",
			wantMeta: map[string]any{"title": "Hello", "weight": int64(3)},
			wantBody: "body\n",
		},
		{
			name:     "crlf",
			input:    "---\r\ntitle: Hi\r\n---\r\nbody\r\n",
			wantMeta: map[string]any{"title": "Hi"},
			wantBody: "body\r\n",
		},
		{
			name:     "closing delimiter at end of file",
			input:    "---\ntitle: Hi\n---",
			wantMeta: map[string]any{"title": "Hi"},
			wantBody: "",
		},
		{
			name:     "no block",
			input:    "# Heading\n\ntext\n",
			wantBody: "# Heading\n\ntext\n",
		},
		{
			name:     "delimiter not on first line",
			input:    "text\n---\ntitle: x\n---\n",
			wantBody: "text\n---\ntitle: x\n---\n",
		},
		{
			name:    "unterminated",
			input:   "---\ntitle: Hello\nbody\n",
			wantErr: "unterminated yaml front matter",
		},
		{
			name:    "invalid yaml",
			input:   "---\ntitle: [unclosed\n---\n",
			wantErr: "yaml front matter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, body, err := SplitFrontMatter([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantMeta == nil {
				assert.Nil(t, meta)
			} else {
				assert.Equal(t, tt.wantMeta, meta)
			}
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestFrontMatter_MergesIntoMeta(t *testing.T) {
	item := site.NewItem("posts", "a.md", nil)
	item.Meta["layout"] = "post"
	item.Body = []byte("---\ntitle: Hello\n---\nbody\n")

	require.NoError(t, FrontMatter().Apply(context.Background(), item, nil))

	assert.Equal(t, "Hello", item.Meta["title"])
	assert.Equal(t, "post", item.Meta["layout"])
	assert.Equal(t, "body\n", string(item.Body))
}

func TestFrontMatter_FailureNamesStep(t *testing.T) {
	item := site.NewItem("posts", "a.md", nil)
	item.Body = []byte("---\ntitle: x\n")

	err := site.NewChain(FrontMatter()).Apply(context.Background(), item, nil)
	require.Error(t, err)
	assert.Equal(t, "front_matter", site.FailedStep(err))
}
