package catalog

import (
	"sort"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/search"
)

// Sentinel category values understood by Filter and Categories.
const (
	// CategoryAll disables category filtering.
	CategoryAll = "all"
	// CategoryNone groups products without a category.
	CategoryNone = "uncategorized"
)

// SortOrder selects the direction of SortByCreated.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Store is the authoritative in-memory product collection for a session.
// Persistence layers replicate it; they do not own it. A remote change
// notification replaces the whole collection atomically via ReplaceAll.
type Store struct {
	mu       sync.RWMutex
	products []Product
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// List returns a copy of the current collection in insertion order.
func (s *Store) List() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.products)
}

// Len reports the number of products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Get looks up a product by id.
func (s *Store) Get(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return Product{}, false
}

// Upsert full-replaces the product with the same id, or appends it when new.
// UpdatedAt is always stamped; CreatedAt is preserved from the existing
// record when present, otherwise set to now. The stored product is returned.
func (s *Store) Upsert(p Product) Product {
	now := NowMillis()
	p = p.Clone()
	p.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.products {
		if existing.ID == p.ID {
			p.CreatedAt = existing.CreatedAt
			s.products[i] = p
			return p.Clone()
		}
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	s.products = append(s.products, p)
	return p.Clone()
}

// Delete removes the product with the given id. Deleting an absent id is a
// no-op and reports false.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.products {
		if p.ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			return true
		}
	}
	return false
}

// ReplaceAll swaps the entire collection for the given snapshot in one step.
// Used when a remote reload wins over local state.
func (s *Store) ReplaceAll(snapshot []Product) {
	cloned := cloneAll(snapshot)
	s.mu.Lock()
	s.products = cloned
	s.mu.Unlock()
}

// Filter returns the products whose code or name contains query
// (Unicode case-insensitive) and whose category matches. The CategoryAll
// sentinel disables the category test; products without a category match
// CategoryNone. The store is not mutated.
func (s *Store) Filter(query, category string) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matcher := search.New(language.Und, search.IgnoreCase)
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if query != "" && !matches(matcher, p.Code, query) && !matches(matcher, p.Name, query) {
			continue
		}
		if category != "" && category != CategoryAll {
			cat := p.Category
			if cat == "" {
				cat = CategoryNone
			}
			if cat != category {
				continue
			}
		}
		out = append(out, p.Clone())
	}
	return out
}

// SortByCreated returns the products ordered by CreatedAt. The sort is
// stable so equal timestamps keep their insertion order.
func (s *Store) SortByCreated(order SortOrder) []Product {
	out := s.List()
	SortProducts(out, order)
	return out
}

// SortProducts orders a product slice by CreatedAt in place, stably.
func SortProducts(products []Product, order SortOrder) {
	sort.SliceStable(products, func(i, j int) bool {
		if order == SortAsc {
			return products[i].CreatedAt < products[j].CreatedAt
		}
		return products[i].CreatedAt > products[j].CreatedAt
	})
}

// Categories returns the distinct category set in first-seen order, mapping
// blank categories to the CategoryNone sentinel.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.products))
	out := make([]string, 0, len(s.products))
	for _, p := range s.products {
		cat := p.Category
		if cat == "" {
			cat = CategoryNone
		}
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}

// Suggestions returns the distinct non-empty categories, suitable for
// autocomplete. The CategoryNone sentinel is excluded.
func (s *Store) Suggestions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.products))
	out := make([]string, 0, len(s.products))
	for _, p := range s.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

func matches(m *search.Matcher, text, pattern string) bool {
	if pattern == "" {
		return true
	}
	start, _ := m.IndexString(text, pattern)
	return start >= 0
}

func cloneAll(products []Product) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}
