package cart

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanice/storefront/internal/kvstore"
)

func TestCart_AddAddRemove(t *testing.T) {
	store := kvstore.NewMemoryKV(0)
	c := Load(store, "cart")
	require.NoError(t, c.AddItem("Shirt", "R50-R100"))
	require.NoError(t, c.AddItem("Shirt", "R50-R100"))
	require.NoError(t, c.RemoveItem(0))

	assert.Equal(t, []Line{{Name: "Shirt", PriceRange: "R50-R100"}}, c.Lines())
	// persisted
	assert.Equal(t, c.Lines(), Load(store, "cart").Lines())
}

func TestCart_RemoveOutOfRange(t *testing.T) {
	c := Load(kvstore.NewMemoryKV(0), "cart")
	require.NoError(t, c.AddItem("Cap", "R80"))
	require.NoError(t, c.RemoveItem(5))
	require.NoError(t, c.RemoveItem(-1))
	assert.Equal(t, 1, c.Len())
}

func TestCart_Clear(t *testing.T) {
	store := kvstore.NewMemoryKV(0)
	c := Load(store, "cart")
	require.NoError(t, c.AddItem("Cap", "R80"))
	require.NoError(t, c.Clear())
	assert.Empty(t, Load(store, "cart").Lines())
}

func TestCart_MalformedStore(t *testing.T) {
	store := kvstore.NewMemoryKV(0)
	require.NoError(t, store.Set("cart", []byte("{broken")))
	assert.Empty(t, Load(store, "cart").Lines())
}

func TestCart_QuotaKeepsMemory(t *testing.T) {
	c := Load(kvstore.NewMemoryKV(24), "cart")
	require.NoError(t, c.AddItem("A jacket with a very long name", "R1000"))
	assert.Equal(t, 1, c.Len())
}

func TestCart_Checkout(t *testing.T) {
	c := Load(kvstore.NewMemoryKV(0), "cart")
	_, err := c.Checkout("27731635803")
	assert.ErrorIs(t, err, ErrEmptyCart)

	require.NoError(t, c.AddItem("Shirt", "R50-R100"))
	require.NoError(t, c.AddItem("Kids Pack", "R120"))
	order, err := c.Checkout("27731635803")
	require.NoError(t, err)

	expected := "Hi AMA-NICE! I'd like to order the following items:\n\n" +
		"• Shirt - R50-R100\n" +
		"• Kids Pack - R120\n" +
		"\nPlease let me know about availability and payment details."
	assert.Equal(t, expected, order.Message)
	assert.True(t, strings.HasPrefix(order.URL, "https://wa.me/27731635803?text="))
	assert.NotContains(t, order.URL, "+")

	u, err := url.Parse(order.URL)
	require.NoError(t, err)
	assert.Equal(t, expected, u.Query().Get("text"))
	assert.Equal(t, 2, c.Len())
}

func TestManager(t *testing.T) {
	m := NewManager(kvstore.NewMemoryKV(0), "27000000000")
	lines, err := m.Update("a", func(c *Cart) error { return c.AddItem("Shirt", "R50") })
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Empty(t, m.Lines("b"))

	order, err := m.Checkout("a")
	require.NoError(t, err)
	assert.Contains(t, order.URL, "wa.me/27000000000")
	_, err = m.Checkout("b")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestManager_QuotaKeepsCartInMemory(t *testing.T) {
	store := kvstore.NewMemoryKV(60)
	m := NewManager(store, "27000000000")
	_, err := m.Update("a", func(c *Cart) error { return c.AddItem("Shirt", "R50") })
	require.NoError(t, err)
	lines, err := m.Update("a", func(c *Cart) error { return c.AddItem("Cap", "R80") })
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// the store still holds the first line only
	assert.Len(t, Load(store, cartKey("a")).Lines(), 1)
	assert.Len(t, m.Lines("a"), 2)
	order, err := m.Checkout("a")
	require.NoError(t, err)
	assert.Contains(t, order.Message, "• Cap - R80")

	_, err = m.Update("a", func(c *Cart) error { return c.Clear() })
	require.NoError(t, err)
	assert.Empty(t, m.Lines("a"))
	assert.Empty(t, Load(store, cartKey("a")).Lines())
}
