package site

import "fmt"

// Page describes one page produced by a paginating rule. It is stored in
// the page item's Meta under "page".
type Page struct {
	Number int     // 1-based
	Total  int     // number of pages
	Items  []*Item // slice of the dependency binding on this page

	First string
	Last  string
	Prev  string // empty on the first page
	Next  string // empty on the last page
}

// PageMetaKey is the metadata key that holds a *Page.
const PageMetaKey = "page"

// PageOf returns the page attached to item, if any.
func PageOf(item *Item) (*Page, bool) {
	p, ok := item.Meta[PageMetaKey].(*Page)
	return p, ok
}

func paginate(r *Rule, b *Binding, env *Env) ([]*Item, error) {
	if r.perPage <= 0 {
		return nil, fmt.Errorf("rule %q: items per page must be positive, got %d", r.name, r.perPage)
	}
	if r.pageRoute == nil {
		return nil, fmt.Errorf("rule %q: no page route", r.name)
	}

	all := b.Items()
	total := (len(all) + r.perPage - 1) / r.perPage
	if total == 0 {
		// An empty dependency still yields a first page.
		total = 1
	}

	routes := make([]string, total)
	for n := 1; n <= total; n++ {
		routes[n-1] = r.pageRoute(n)
	}

	items := make([]*Item, 0, total)
	for n := 1; n <= total; n++ {
		lo := (n - 1) * r.perPage
		hi := min(lo+r.perPage, len(all))
		if lo > len(all) {
			lo = len(all)
		}

		p := &Page{
			Number: n,
			Total:  total,
			Items:  all[lo:hi],
			First:  routes[0],
			Last:   routes[total-1],
		}
		if n > 1 {
			p.Prev = routes[n-2]
		}
		if n < total {
			p.Next = routes[n]
		}

		it := NewItem(r.name, routes[n-1], env)
		it.Output = routes[n-1]
		it.Meta[PageMetaKey] = p
		items = append(items, it)
	}
	return items, nil
}
