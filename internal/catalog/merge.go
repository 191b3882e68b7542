package catalog

import (
	"github.com/amanice/storefront/internal/domain"
)

// Tombstones is the set of deleted catalog product ids
type Tombstones map[string]struct{}

func NewTombstones(ids ...string) Tombstones {
	t := make(Tombstones, len(ids))
	for _, id := range ids {
		t[id] = struct{}{}
	}
	return t
}

func (t Tombstones) Has(id string) bool {
	_, ok := t[id]
	return ok
}

// orderedProducts is an insertion-ordered map keyed by product id. Overwriting
// keeps the original position; a deleted key that comes back goes to the end.
type orderedProducts struct {
	index map[string]int
	items []domain.Product
	alive []bool
}

func newOrderedProducts(size int) *orderedProducts {
	return &orderedProducts{
		index: make(map[string]int, size),
		items: make([]domain.Product, 0, size),
		alive: make([]bool, 0, size),
	}
}

func (m *orderedProducts) set(p domain.Product) {
	if i, ok := m.index[p.ID]; ok {
		m.items[i] = p
		return
	}
	m.index[p.ID] = len(m.items)
	m.items = append(m.items, p)
	m.alive = append(m.alive, true)
}

func (m *orderedProducts) delete(id string) {
	if i, ok := m.index[id]; ok {
		m.alive[i] = false
		delete(m.index, id)
	}
}

func (m *orderedProducts) values() []domain.Product {
	out := make([]domain.Product, 0, len(m.index))
	for i, p := range m.items {
		if m.alive[i] {
			out = append(out, p)
		}
	}
	return out
}

// Merge builds the storefront product view. Catalog products that are not
// tombstoned come first, marked default. Overrides follow and replace any
// entry with the same id wholesale; an override with an originalId also
// removes the catalog product it was derived from. Tombstoned ids never appear.
func Merge(catalog, overrides []domain.Product, tombstones Tombstones) []domain.Product {
	m := newOrderedProducts(len(catalog) + len(overrides))
	for _, p := range catalog {
		if tombstones.Has(p.ID) {
			continue
		}
		p.IsDefault = true
		m.set(p)
	}
	for _, p := range overrides {
		p.ID = toID(p.ID)
		p.IsDefault = false
		if p.OriginalID != "" && p.OriginalID != p.ID {
			m.delete(p.OriginalID)
		}
		if tombstones.Has(p.ID) {
			continue
		}
		m.set(p)
	}
	return m.values()
}

// Compose picks the override list for a merge: the remote products when the
// fetch succeeded, otherwise whatever local reads.
func Compose(remote []domain.Product, ferr *FetchError, local func() []domain.Product) []domain.Product {
	if ferr == nil {
		return remote
	}
	return local()
}
