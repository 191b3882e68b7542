package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanice/storefront/internal/domain"
)

func price(v float64) *float64 { return &v }

func TestProject_SneakersBecomeLink(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Type: "Nike Sneaker", Category: "men"},
		{ID: "2", Type: "T-Shirt", Category: "men"},
	}
	view := Project(products, "men", ProjectOptions{Match: MatchExact})

	require.Len(t, view.Groups, 1)
	assert.Equal(t, "T-Shirt", view.Groups[0].Type)
	assert.Equal(t, "product-type.html?type=T-Shirt&category=men", view.Groups[0].Link)
	assert.Equal(t, []SpecialLink{{Title: "Sneakers", Link: "sneakers.html", Count: 1}}, view.Specials)
	assert.Empty(t, view.Placeholder)
}

func TestProject_GroupsSortedByType(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Type: "jeans", Category: "women", IsDefault: true, Price: price(300)},
		{ID: "2", Type: "Blouse ", Category: "women", Price: price(120)},
		{ID: "3", Type: "Blouse", Category: "women", IsDefault: true, Price: price(180), Image: "b.jpg"},
		{ID: "4", Type: "  ", Category: "women"},
		{ID: "5", Type: "Ladies Takkies", Category: "women"},
		{ID: "6", Type: "Summer Dress & Hat", Category: "Women"},
		{ID: "7", Type: "Shirt", Category: "men"},
	}
	view := Project(products, "women", ProjectOptions{Match: MatchExact})

	require.Len(t, view.Groups, 3)
	assert.Equal(t, "Blouse", view.Groups[0].Type)
	assert.Equal(t, "jeans", view.Groups[1].Type)
	assert.Equal(t, "Summer Dress & Hat", view.Groups[2].Type)
	assert.Equal(t, "product-type.html?type=Summer%20Dress%20%26%20Hat&category=women", view.Groups[2].Link)

	blouse := view.Groups[0]
	assert.Equal(t, []string{"2", "3"}, blouse.ProductIDs)
	assert.Equal(t, 1, blouse.DefaultCount)
	assert.Equal(t, 1, blouse.AdminCount)
	assert.Equal(t, "b.jpg", blouse.Image)
	require.NotNil(t, blouse.Price)
	assert.Equal(t, 120.0, blouse.Price.Min)
	assert.Equal(t, 180.0, blouse.Price.Max)
	assert.Equal(t, 150.0, blouse.Price.Mean)
	assert.Nil(t, view.Groups[2].Price)
}

func TestProject_EmptyCategory(t *testing.T) {
	view := Project([]domain.Product{{ID: "1", Type: "Kids Clothing Pack", Category: "kids"}}, "KIDS", ProjectOptions{})
	assert.Empty(t, view.Groups)
	assert.Equal(t, EmptyCategoryPlaceholder, view.Placeholder)
	assert.Equal(t, []SpecialLink{{Title: "Kids Clothing Packs", Link: "kids-packs.html", Count: 1}}, view.Specials)
}

func TestCategoryMatches(t *testing.T) {
	assert.True(t, CategoryMatches("Men", "men", MatchExact))
	assert.False(t, CategoryMatches("mens", "men", MatchExact))
	assert.True(t, CategoryMatches("mens", "men", MatchPrefix))
	assert.True(t, CategoryMatches("kid", "kids", MatchPrefix))
	assert.False(t, CategoryMatches("women", "men", MatchPrefix))
	assert.False(t, CategoryMatches("", "men", MatchPrefix))
	assert.Equal(t, MatchExact, ParseMatchMode("EXACT"))
	assert.Equal(t, MatchPrefix, ParseMatchMode(""))
}

func TestResolveCategoryCard(t *testing.T) {
	titles := []string{"Kids Corner", "Ladies", "Gents"}
	assert.Equal(t, 0, ResolveCategoryCard(titles, "kids", false))
	assert.Equal(t, -1, ResolveCategoryCard(titles, "women", false))
	assert.Equal(t, 1, ResolveCategoryCard(titles, "women", true))
	assert.Equal(t, -1, ResolveCategoryCard(titles[:1], "women", true))

	// the last matching title wins
	assert.Equal(t, 1, ResolveCategoryCard([]string{"Men's Corner", "Women's Wear"}, "men", false))
	assert.Equal(t, 0, ResolveCategoryCard([]string{"Male", "Kids"}, "men", false))
}

func TestFeatured(t *testing.T) {
	cards := Featured([]domain.Product{
		{ID: "1", Type: "Nike Sneaker", Category: "men", Image: "nike.jpg", PriceRange: "R450"},
		{ID: "2", Type: "Kids Pack", Category: "kids", Description: "Five items"},
	})
	require.Len(t, cards, 3)
	assert.Equal(t, FeaturedCard{
		Title:       "Men's Sneakers",
		Image:       "nike.jpg",
		Description: "Stylish and comfortable sneakers for men in various sizes and styles.",
		Price:       "R450",
		Link:        "sneakers.html",
	}, cards[0])
	assert.Equal(t, "Assets/images/Ladies takkies.jpg", cards[1].Image)
	assert.Equal(t, "R100 - R590", cards[1].Price)
	assert.Equal(t, "Five items", cards[2].Description)
	assert.Equal(t, "Assets/images/Kids packs 1.jpg", cards[2].Image)
	assert.Equal(t, "kids-packs.html", cards[2].Link)
}

func TestRecentlyAdded(t *testing.T) {
	now := time.Now()
	var products []domain.Product
	for i := 0; i < 8; i++ {
		products = append(products, domain.Product{
			ID:        string(rune('a' + i)),
			Type:      "Hoodie",
			Category:  "men",
			DateAdded: domain.NewTimestamp(now.Add(time.Duration(i) * time.Minute)),
		})
	}
	products = append(products,
		domain.Product{ID: "default", IsDefault: true, DateAdded: domain.NewTimestamp(now.Add(time.Hour))},
		domain.Product{ID: "undated", Type: "Cap"},
	)

	cards := RecentlyAdded(products, 0)
	require.Len(t, cards, RecentLimit)
	assert.Equal(t, "h", cards[0].ID)
	assert.Equal(t, "c", cards[5].ID)
	assert.Equal(t, "Men's Hoodie", cards[0].Description)
	assert.Equal(t, "Price on request", cards[0].Price)

	cards = RecentlyAdded(products, 2)
	assert.Len(t, cards, 2)
}

func TestDisplayPrice(t *testing.T) {
	assert.Equal(t, "R50 - R90", DisplayPrice(domain.Product{PriceRange: "R50 - R90", Price: price(10)}))
	assert.Equal(t, "R150.00", DisplayPrice(domain.Product{Price: price(150)}))
}
