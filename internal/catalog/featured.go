package catalog

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/amanice/storefront/internal/domain"
)

// RecentLimit caps the recently added list
const RecentLimit = 6

type FeaturedCard struct {
	Title       string `json:"title"`
	Image       string `json:"image"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Link        string `json:"link"`
}

type featuredSlot struct {
	card  FeaturedCard
	match func(p domain.Product) bool
}

var featuredSlots = []featuredSlot{
	{
		card: FeaturedCard{
			Title:       "Men's Sneakers",
			Image:       "Assets/images/Mens sneakers.jpg",
			Description: "Stylish and comfortable sneakers for men in various sizes and styles.",
			Price:       "R100 - R790",
			Link:        "sneakers.html",
		},
		match: func(p domain.Product) bool { return IsSneaker(p) && p.Category == "men" },
	},
	{
		card: FeaturedCard{
			Title:       "Women's Sneakers",
			Image:       "Assets/images/Ladies takkies.jpg",
			Description: "Trendy sneakers for women in all sizes and colors.",
			Price:       "R100 - R590",
			Link:        "sneakers.html",
		},
		match: func(p domain.Product) bool { return IsSneaker(p) && p.Category == "women" },
	},
	{
		card: FeaturedCard{
			Title:       "Kids Clothing Packs",
			Image:       "Assets/images/Kids packs 1.jpg",
			Description: "Complete outfits for children aged 0-14 years. Each pack contains 5-7 items depending on sizes and ages.",
			Price:       "R120",
			Link:        "kids-packs.html",
		},
		match: func(p domain.Product) bool { return IsKidsPack(p) && p.Category == "kids" },
	},
}

// Featured returns the three home page cards, filled from the first matching
// product of each kind and falling back to the built-in card text.
func Featured(products []domain.Product) []FeaturedCard {
	cards := make([]FeaturedCard, 0, len(featuredSlots))
	for _, slot := range featuredSlots {
		card := slot.card
		for _, p := range products {
			if !slot.match(p) {
				continue
			}
			if p.Image != "" {
				card.Image = p.Image
			}
			if p.Description != "" {
				card.Description = p.Description
			}
			if p.PriceRange != "" {
				card.Price = p.PriceRange
			}
			break
		}
		cards = append(cards, card)
	}
	return cards
}

type RecentCard struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Image       string `json:"image"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	DateAdded   string `json:"dateAdded"`
}

// RecentlyAdded lists admin products with a dateAdded, newest first
func RecentlyAdded(products []domain.Product, limit int) []RecentCard {
	if limit <= 0 || limit > RecentLimit {
		limit = RecentLimit
	}
	recent := make([]domain.Product, 0)
	for _, p := range products {
		if !p.IsDefault && !p.DateAdded.IsZero() {
			recent = append(recent, p)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].DateAdded.After(recent[j].DateAdded.Time)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}

	title := cases.Title(language.English)
	cards := make([]RecentCard, 0, len(recent))
	for _, p := range recent {
		desc := p.Description
		if desc == "" {
			desc = fmt.Sprintf("%s's %s", title.String(p.Category), p.Type)
		}
		cards = append(cards, RecentCard{
			ID:          p.ID,
			Type:        p.Type,
			Image:       p.Image,
			Description: desc,
			Price:       DisplayPrice(p),
			Stock:       p.Stock(),
			DateAdded:   p.DateAdded.Format(domain.TimeLayout),
		})
	}
	return cards
}

// DisplayPrice prefers the free text range, then the numeric price
func DisplayPrice(p domain.Product) string {
	if p.PriceRange != "" {
		return p.PriceRange
	}
	if p.Price != nil && *p.Price != 0 {
		return fmt.Sprintf("R%.2f", *p.Price)
	}
	return "Price on request"
}
