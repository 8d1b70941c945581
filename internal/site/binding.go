package site

import "fmt"

// Binding is the frozen result set of one rule: its successfully processed
// items in discovery order, indexed by source identifier.
//
// A Binding is built once by the engine when the rule finishes and is
// never modified afterwards, so any number of dependent rules may read it
// concurrently.
type Binding struct {
	name  string
	items []*Item
	index map[string]int
}

// NewBinding freezes items into a binding for rule. Each item's Owner is
// set to its position. The slice is copied.
func NewBinding(rule string, items []*Item) *Binding {
	b := &Binding{
		name:  rule,
		items: make([]*Item, len(items)),
		index: make(map[string]int, len(items)),
	}
	copy(b.items, items)
	for i, it := range b.items {
		it.Owner = BindingRef{Rule: rule, Index: i}
		b.index[it.Source] = i
	}
	return b
}

// Name returns the owning rule's name.
func (b *Binding) Name() string { return b.name }

// Len returns the number of committed items.
func (b *Binding) Len() int { return len(b.items) }

// Items returns the committed items in discovery order. The returned slice
// is a copy; the items themselves must not be modified.
func (b *Binding) Items() []*Item {
	out := make([]*Item, len(b.items))
	copy(out, b.items)
	return out
}

// At returns the i-th item.
func (b *Binding) At(i int) *Item { return b.items[i] }

// Lookup finds an item by source identifier.
func (b *Binding) Lookup(source string) (*Item, bool) {
	i, ok := b.index[source]
	if !ok {
		return nil, false
	}
	return b.items[i], true
}

// Outputs returns the output paths of all items, in item order.
func (b *Binding) Outputs() []string {
	out := make([]string, len(b.items))
	for i, it := range b.items {
		out[i] = it.Output
	}
	return out
}

// Dependencies is the read-only view of published bindings handed to a
// compiler: exactly the rules its owning rule declared as dependencies.
type Dependencies map[string]*Binding

// Get returns the binding for rule or an error naming it.
func (d Dependencies) Get(rule string) (*Binding, error) {
	b, ok := d[rule]
	if !ok || b == nil {
		return nil, fmt.Errorf("dependency %q is not available", rule)
	}
	return b, nil
}

// Resolve follows a back-reference to the item it names.
func (d Dependencies) Resolve(ref BindingRef) (*Item, error) {
	b, err := d.Get(ref.Rule)
	if err != nil {
		return nil, err
	}
	if ref.Index < 0 || ref.Index >= b.Len() {
		return nil, fmt.Errorf("binding %q has no item %d", ref.Rule, ref.Index)
	}
	return b.At(ref.Index), nil
}
