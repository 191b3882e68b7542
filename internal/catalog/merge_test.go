package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amanice/storefront/internal/domain"
)

func product(id, typeName, category string) domain.Product {
	return domain.Product{ID: id, Type: typeName, Category: category, Kind: domain.KindRegular}
}

func ids(products []domain.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestMerge_TombstonedOnlyCatalogIsEmpty(t *testing.T) {
	catalog := []domain.Product{product("1", "Shirt", "men")}
	merged := Merge(catalog, nil, NewTombstones("1"))
	assert.Empty(t, merged)
	assert.NotNil(t, merged)
}

func TestMerge_TombstonesNeverLeak(t *testing.T) {
	catalog := []domain.Product{product("1", "Shirt", "men"), product("2", "Dress", "women")}
	overrides := []domain.Product{product("1", "Shirt again", "men"), product("x1", "Hoodie", "men")}
	merged := Merge(catalog, overrides, NewTombstones("1", "X1"))
	assert.Equal(t, []string{"2", "x1"}, ids(merged))
}

func TestMerge_OverrideSupersedesCatalog(t *testing.T) {
	catalog := []domain.Product{product("1", "Shirt", "men"), product("2", "Dress", "women")}
	overrides := []domain.Product{product("1", "Updated Shirt", "men")}
	merged := Merge(catalog, overrides, NewTombstones())

	assert.Equal(t, []string{"1", "2"}, ids(merged))
	assert.Equal(t, "Updated Shirt", merged[0].Type)
	assert.False(t, merged[0].IsDefault)
	assert.True(t, merged[1].IsDefault)
}

func TestMerge_OriginalIDReplacesCatalogProduct(t *testing.T) {
	catalog := []domain.Product{product("m1", "Shirt", "men"), product("m2", "Jeans", "men")}
	edited := product("admin-99", "Shirt (blue)", "men")
	edited.OriginalID = "m1"
	merged := Merge(catalog, []domain.Product{edited}, NewTombstones())
	assert.Equal(t, []string{"m2", "admin-99"}, ids(merged))
}

func TestMerge_Idempotent(t *testing.T) {
	catalog := []domain.Product{product("1", "Shirt", "men"), product("2", "Dress", "women"), product("3", "Cap", "kids")}
	overrides := []domain.Product{product("10", "Hoodie", "men"), product("2", "Long Dress", "women")}
	tomb := NewTombstones("3")

	first := Merge(catalog, overrides, tomb)
	second := Merge(catalog, overrides, tomb)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"1", "2", "10"}, ids(first))
	// inputs are not modified
	assert.False(t, overrides[1].IsDefault)
	assert.False(t, catalog[0].IsDefault)
}

func TestMerge_OverrideIDTrimmed(t *testing.T) {
	merged := Merge([]domain.Product{product("7", "Shirt", "men")}, []domain.Product{product(" 7 ", "Polo", "men")}, nil)
	assert.Len(t, merged, 1)
	assert.Equal(t, "Polo", merged[0].Type)
}

func TestCompose(t *testing.T) {
	remote := []domain.Product{product("1", "Shirt", "men")}
	local := func() []domain.Product { return []domain.Product{product("admin-1", "Local", "men")} }

	assert.Equal(t, remote, Compose(remote, nil, local))
	assert.Equal(t, []string{"admin-1"}, ids(Compose(nil, &FetchError{Source: "db", Status: 500}, local)))
}

func TestFetchError(t *testing.T) {
	var err error = &FetchError{Source: "http://remote", Status: 502}
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "502")
	assert.ErrorIs(t, validationErr("bad"), ErrValidation)
	assert.NotErrorIs(t, validationErr("bad"), ErrTransport)
}
