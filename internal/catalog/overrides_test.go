package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/internal/kvstore"
)

func TestOverrideStore_Products(t *testing.T) {
	store := NewOverrideStore(kvstore.NewMemoryKV(0))

	products, err := store.Products()
	require.NoError(t, err)
	assert.Empty(t, products)

	require.NoError(t, store.AppendProduct(product("admin-1", "Hoodie", "MEN")))
	p2 := product("admin-2", "Shirt", "men")
	p2.OriginalID = "m1"
	require.NoError(t, store.AppendProduct(p2))

	found, err := store.UpdateProduct("m1", func(p *domain.Product) { p.Type = "Blue Shirt" })
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.UpdateProduct("nope", func(p *domain.Product) {})
	require.NoError(t, err)
	assert.False(t, found)

	products, err = store.Products()
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "men", products[0].Category)
	assert.Equal(t, "Blue Shirt", products[1].Type)

	removed, err := store.RemoveProduct("admin-1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.RemoveProduct("admin-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestOverrideStore_Tombstones(t *testing.T) {
	kv := kvstore.NewMemoryKV(0)
	require.NoError(t, kv.Set(KeyDeletedProducts, []byte(`[1,"m2"]`)))
	store := NewOverrideStore(kv)

	require.NoError(t, store.AddTombstone("m3"))
	require.NoError(t, store.AddTombstone("m3"))
	tomb, err := store.Tombstones()
	require.NoError(t, err)
	assert.Len(t, tomb, 3)
	assert.True(t, tomb.Has("1"))
	assert.True(t, tomb.Has("m2"))
	assert.True(t, tomb.Has("m3"))
}

func TestOverrideStore_MalformedData(t *testing.T) {
	kv := kvstore.NewMemoryKV(0)
	require.NoError(t, kv.Set(KeyProducts, []byte(`{not json`)))
	require.NoError(t, kv.Set(KeyDeletedProducts, []byte(`"oops`)))
	store := NewOverrideStore(kv)

	products, err := store.Products()
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Empty(t, products)

	tomb, err := store.Tombstones()
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Empty(t, tomb)

	// a write starts over from an empty collection
	require.NoError(t, store.AppendProduct(product("admin-1", "Hoodie", "men")))
	products, err = store.Products()
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestOverrideStore_QuotaKeepsValueInMemory(t *testing.T) {
	store := NewOverrideStore(kvstore.NewMemoryKV(64))
	p := product("admin-1", "A very long product type name that does not fit", "men")

	err := store.AppendProduct(p)
	assert.ErrorIs(t, err, ErrStorageQuota)

	products, err := store.Products()
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "admin-1", products[0].ID)
}

func TestOverrideStore_Images(t *testing.T) {
	store := NewOverrideStore(kvstore.NewMemoryKV(0))

	_, ok, err := store.GetImage("shirt.png")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, store.PutImage("shirt.png", "Assets/uploads/shirt.png"), ErrValidation)
	require.NoError(t, store.PutImage("shirt.png", "data:image/png;base64,iVBORw0KGgo="))
	v, ok, err := store.GetImage("shirt.png")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", v)
}
