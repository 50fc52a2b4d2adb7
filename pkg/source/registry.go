package source

import (
	"strings"
	"sync"
)

// Entry is one item in the source picker.
type Entry struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Catalog returns the sources offered in the picker, in display order.
func Catalog() []Entry {
	return []Entry{
		{Name: "Shopify", Type: TypeShopify},
		{Name: "Amazon Seller Partner", Type: TypeAmazonSellerPartner},
		{Name: "Flipkart", Type: TypeFlipkart},
	}
}

// Names returns the display names of the catalog entries.
func Names() []string {
	c := Catalog()
	out := make([]string, len(c))
	for i, e := range c {
		out[i] = e.Name
	}
	return out
}

// Registry maps connector types to their panels.
type Registry struct {
	mu     sync.RWMutex
	panels map[Type]Panel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{panels: make(map[Type]Panel)}
}

// DefaultRegistry returns a registry with every implemented panel.
// Flipkart is listed in the catalog but has no panel.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ShopifyPanel())
	r.Register(AmazonSellerPartnerPanel())
	r.Register(AmazonAdsPanel())
	return r
}

// Register adds or replaces the panel for p.Type().
func (r *Registry) Register(p Panel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels[p.Type()] = p
}

// Get returns the panel for t.
func (r *Registry) Get(t Type) (Panel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.panels[t]
	return p, ok
}

// Resolve maps a type key or display name to a connector type.
func (r *Registry) Resolve(name string) (Type, bool) {
	if t := Type(name); t.Valid() {
		return t, true
	}
	for _, t := range Types() {
		if p, ok := r.Get(t); ok && strings.EqualFold(p.Title(), name) {
			return t, true
		}
	}
	for _, e := range Catalog() {
		if strings.EqualFold(e.Name, name) {
			return e.Type, true
		}
	}
	return "", false
}

// Lookup returns the panel for a type key or display name. Unknown names and
// types without a panel get the placeholder.
func (r *Registry) Lookup(name string) Panel {
	t, ok := r.Resolve(name)
	if !ok {
		return Placeholder()
	}
	if p, ok := r.Get(t); ok {
		return p
	}
	return Placeholder()
}
