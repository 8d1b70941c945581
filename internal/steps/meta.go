package steps

import (
	"context"
	"fmt"

	"github.com/roach88/kiln/internal/site"
)

// Inject sets Meta[key] to value on every item.
func Inject(key string, value any) site.Compiler {
	return site.Step("inject", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		if item.Meta == nil {
			item.Meta = site.Metadata{}
		}
		item.Meta[key] = value
		return nil
	})
}

// Retain keeps items accepted by keep and skips the rest. Skipped items
// leave the rule's binding without being reported as failures.
func Retain(keep func(*site.Item) bool) site.Compiler {
	return site.Step("retain", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		if keep(item) {
			return nil
		}
		return site.ErrSkip
	})
}

// Publishable retains items that are not drafts. In preview mode drafts
// are kept too.
func Publishable() site.Compiler {
	return Retain(func(item *site.Item) bool {
		if item.Env != nil && item.Env.Preview {
			return true
		}
		return !item.Meta.Bool("draft")
	})
}

// MetaEquals retains items whose Meta[key], formatted as a string, equals
// value.
func MetaEquals(key, value string) site.Compiler {
	return Retain(func(item *site.Item) bool {
		v, ok := item.Meta.String(key)
		return ok && v == value
	})
}

// RequireMeta fails items that lack any of keys.
func RequireMeta(keys ...string) site.Compiler {
	return site.Step("require_meta", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		for _, k := range keys {
			if _, ok := item.Meta[k]; !ok {
				return fmt.Errorf("missing metadata %q", k)
			}
		}
		return nil
	})
}
