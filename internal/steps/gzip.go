package steps

import (
	"bytes"
	"context"

	"github.com/klauspost/compress/gzip"

	"github.com/roach88/kiln/internal/site"
)

// Gzip writes a precompressed copy of Body next to the output, at
// "<output>.gz". The item itself is unchanged, so a following write step
// still stores the plain body. The ".gz" path is claimed in the output
// ledger like any other output. Unrouted items are left alone. level
// follows compress/flate; 0 selects the best compression.
func Gzip(level int) site.Compiler {
	if level == 0 {
		level = gzip.BestCompression
	}
	return site.Step("gzip", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		if item.Output == "" {
			return nil
		}
		dst, err := item.OutputPath()
		if err != nil {
			return err
		}
		if item.Env != nil && item.Env.Outputs != nil {
			c := site.Claim{Rule: item.Owner.Rule, Source: item.Source}
			if err := item.Env.Outputs.ClaimPath(item.Output+".gz", c); err != nil {
				return err
			}
		}

		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return err
		}
		if _, err := zw.Write(item.Body); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		return writeFile(dst+".gz", buf.Bytes())
	})
}
