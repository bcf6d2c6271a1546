package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClock(t *testing.T, millis *int64) {
	t.Helper()
	orig := NowMillis
	NowMillis = func() int64 { return *millis }
	t.Cleanup(func() { NowMillis = orig })
}

func product(id, code, name, category string) Product {
	return Product{ID: id, Code: code, Name: name, Category: category}
}

func TestUpsertCreatesThenReplaces(t *testing.T) {
	now := int64(1000)
	withClock(t, &now)

	s := NewStore()
	created := s.Upsert(product("p1", "A-100", "Summer slide", "mens"))
	assert.Equal(t, int64(1000), created.CreatedAt)
	assert.Equal(t, int64(1000), created.UpdatedAt)

	now = 2000
	updated := s.Upsert(product("p1", "A-100", "Summer slide v2", "mens"))
	assert.Equal(t, int64(1000), updated.CreatedAt, "createdAt must survive updates")
	assert.Equal(t, int64(2000), updated.UpdatedAt)
	assert.Greater(t, updated.UpdatedAt, created.UpdatedAt)

	list := s.List()
	require.Len(t, list, 1, "upsert must not duplicate")
	assert.Equal(t, "Summer slide v2", list[0].Name)
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	s := NewStore()
	s.Upsert(product("p1", "A-100", "Slide", ""))

	assert.False(t, s.Delete("missing"))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Delete("p1"))
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Delete("p1"))
}

func TestFilterMatchesCodeOrNameCaseInsensitive(t *testing.T) {
	s := NewStore()
	s.Upsert(product("p1", "EVA-01", "Beach Slide", "mens"))
	s.Upsert(product("p2", "CT-22", "Cotton slipper", "womens"))
	s.Upsert(product("p3", "KD-09", "Kids sandal", "kids"))

	byName := s.Filter("slide", CategoryAll)
	require.Len(t, byName, 1)
	assert.Equal(t, "p1", byName[0].ID)

	byCode := s.Filter("ct-", CategoryAll)
	require.Len(t, byCode, 1)
	assert.Equal(t, "p2", byCode[0].ID)

	assert.Len(t, s.Filter("", CategoryAll), 3)
}

func TestFilterByCategory(t *testing.T) {
	s := NewStore()
	s.Upsert(product("p1", "A-1", "Slide", "mens"))
	s.Upsert(product("p2", "A-2", "Slipper", "mens"))
	s.Upsert(product("p3", "A-3", "Sandal", ""))

	assert.Len(t, s.Filter("", "mens"), 2)
	assert.Empty(t, s.Filter("", "workboots"), "unknown category yields empty, not error")

	uncategorized := s.Filter("", CategoryNone)
	require.Len(t, uncategorized, 1)
	assert.Equal(t, "p3", uncategorized[0].ID)

	// "all" still applies the search match.
	assert.Len(t, s.Filter("sli", CategoryAll), 2)
}

func TestSortByCreatedStable(t *testing.T) {
	now := int64(100)
	withClock(t, &now)

	s := NewStore()
	s.Upsert(product("p1", "A-1", "first", ""))
	now = 200
	s.Upsert(product("p2", "A-2", "second", ""))
	s.Upsert(product("p3", "A-3", "third", "")) // same timestamp as p2

	asc := s.SortByCreated(SortAsc)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(asc))

	desc := s.SortByCreated(SortDesc)
	assert.Equal(t, "p2", desc[0].ID, "stable sort keeps insertion order on ties")
	assert.Equal(t, "p3", desc[1].ID)
	assert.Equal(t, "p1", desc[2].ID)
}

func TestCategoriesAndSuggestions(t *testing.T) {
	s := NewStore()
	s.Upsert(product("p1", "A-1", "a", "mens"))
	s.Upsert(product("p2", "A-2", "b", ""))
	s.Upsert(product("p3", "A-3", "c", "mens"))
	s.Upsert(product("p4", "A-4", "d", "kids"))

	assert.Equal(t, []string{"mens", CategoryNone, "kids"}, s.Categories())
	assert.Equal(t, []string{"mens", "kids"}, s.Suggestions())
}

func TestReplaceAllSwapsWholeCollection(t *testing.T) {
	s := NewStore()
	s.Upsert(product("p1", "A-1", "local edit", ""))

	snapshot := []Product{
		product("r1", "R-1", "remote one", "mens"),
		product("r2", "R-2", "remote two", "mens"),
	}
	s.ReplaceAll(snapshot)

	assert.Equal(t, []string{"r1", "r2"}, ids(s.List()))

	// Mutating the caller's snapshot must not leak into the store.
	snapshot[0].Name = "mutated"
	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "remote one", got.Name)
}

func TestListReturnsCopies(t *testing.T) {
	s := NewStore()
	p := product("p1", "A-1", "original", "")
	p.Costs = []CostItem{{ID: "c1", Name: "Labor", Amount: 5}}
	s.Upsert(p)

	list := s.List()
	list[0].Costs[0].Amount = 999

	got, _ := s.Get("p1")
	assert.Equal(t, 5.0, got.Costs[0].Amount)
}

func ids(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}
