package catalog

import (
	"net/url"
	"strings"

	"github.com/montanaflynn/stats"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/amanice/storefront/internal/domain"
)

const EmptyCategoryPlaceholder = "No products in this category yet."

// MatchMode selects how a product category is compared to the requested one
type MatchMode string

const (
	MatchExact MatchMode = "exact"
	// MatchPrefix also accepts categories where one is a prefix of the other
	MatchPrefix MatchMode = "prefix"
)

func ParseMatchMode(s string) MatchMode {
	if strings.EqualFold(strings.TrimSpace(s), string(MatchExact)) {
		return MatchExact
	}
	return MatchPrefix
}

type ProjectOptions struct {
	Match MatchMode
}

type PriceSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// TypeGroup is one product type entry of a category page
type TypeGroup struct {
	Type         string        `json:"type"`
	Link         string        `json:"link"`
	Image        string        `json:"image,omitempty"`
	Count        int           `json:"count"`
	DefaultCount int           `json:"defaultCount"`
	AdminCount   int           `json:"adminCount"`
	ProductIDs   []string      `json:"productIds"`
	Price        *PriceSummary `json:"price,omitempty"`
}

// SpecialLink is a fixed entry appended after the type groups
type SpecialLink struct {
	Title string `json:"title"`
	Link  string `json:"link"`
	Count int    `json:"count"`
}

type GroupedView struct {
	Category    string        `json:"category"`
	Groups      []TypeGroup   `json:"groups"`
	Specials    []SpecialLink `json:"specials"`
	Placeholder string        `json:"placeholder,omitempty"`
}

// IsSneaker reports shoe products and types named like sneakers
func IsSneaker(p domain.Product) bool {
	t := strings.ToLower(p.Type)
	return p.IsShoe || strings.Contains(t, "sneaker") || strings.Contains(t, "takkies")
}

// IsKidsPack reports clothing pack products
func IsKidsPack(p domain.Product) bool {
	t := strings.ToLower(p.Type)
	return strings.Contains(t, "kids clothing pack") || strings.Contains(t, "kids pack") || strings.Contains(t, "clothing pack")
}

// CategoryMatches compares a product category with the requested category
func CategoryMatches(productCategory, category string, mode MatchMode) bool {
	pc, c := domain.NormalizeCategory(productCategory), domain.NormalizeCategory(category)
	if pc == c {
		return true
	}
	if mode != MatchPrefix || pc == "" || c == "" {
		return false
	}
	return strings.HasPrefix(pc, c) || strings.HasPrefix(c, pc)
}

// TypeLink is the page listing every product of one type in a category
func TypeLink(typeName, category string) string {
	return "product-type.html?type=" + encodeURIComponent(typeName) + "&category=" + category
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Project builds the category page: regular products grouped by type in
// alphabetical order, followed by the fixed sneaker or kids pack link.
func Project(products []domain.Product, category string, opts ProjectOptions) GroupedView {
	category = domain.NormalizeCategory(category)
	view := GroupedView{Category: category, Groups: []TypeGroup{}, Specials: []SpecialLink{}}

	byType := make(map[string][]domain.Product)
	var sneakers, packs int
	for _, p := range products {
		if !CategoryMatches(p.Category, category, opts.Match) {
			continue
		}
		sneaker, pack := IsSneaker(p), IsKidsPack(p)
		if sneaker {
			sneakers++
		}
		if pack {
			packs++
		}
		if sneaker || pack {
			continue
		}
		typeName := strings.TrimSpace(p.Type)
		if typeName == "" {
			continue
		}
		byType[typeName] = append(byType[typeName], p)
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	collate.New(language.English).SortStrings(types)

	for _, t := range types {
		view.Groups = append(view.Groups, newTypeGroup(t, category, byType[t]))
	}
	if len(view.Groups) == 0 {
		view.Placeholder = EmptyCategoryPlaceholder
	}

	switch category {
	case "men", "women":
		view.Specials = append(view.Specials, SpecialLink{Title: "Sneakers", Link: "sneakers.html", Count: sneakers})
	case "kids":
		view.Specials = append(view.Specials, SpecialLink{Title: "Kids Clothing Packs", Link: "kids-packs.html", Count: packs})
	}
	return view
}

func newTypeGroup(typeName, category string, products []domain.Product) TypeGroup {
	g := TypeGroup{
		Type:       typeName,
		Link:       TypeLink(typeName, category),
		Count:      len(products),
		ProductIDs: make([]string, 0, len(products)),
	}
	var prices stats.Float64Data
	for _, p := range products {
		g.ProductIDs = append(g.ProductIDs, p.ID)
		if p.IsDefault {
			g.DefaultCount++
		} else {
			g.AdminCount++
		}
		if g.Image == "" {
			g.Image = p.Image
		}
		if p.Price != nil {
			prices = append(prices, *p.Price)
		}
	}
	g.Price = summarize(prices)
	return g
}

func summarize(prices stats.Float64Data) *PriceSummary {
	if prices.Len() == 0 {
		return nil
	}
	min, _ := prices.Min()
	max, _ := prices.Max()
	mean, _ := prices.Mean()
	median, _ := prices.Median()
	mean, _ = stats.Round(mean, 2)
	return &PriceSummary{Min: min, Max: max, Mean: mean, Median: median}
}

var categoryCardTexts = map[string][]string{
	"men":   {"men's", "men", "male"},
	"women": {"women's", "women", "female"},
	"kids":  {"kids", "kid"},
}

var categoryCardIndex = map[string]int{"men": 0, "women": 1, "kids": 2}

// ResolveCategoryCard picks which of the page's category cards shows category.
// The last title containing one of the category's search texts wins; with
// allowIndexFallback the men, women and kids cards are then assumed to be at
// positions 0, 1 and 2. It returns -1 when no card fits.
func ResolveCategoryCard(titles []string, category string, allowIndexFallback bool) int {
	category = domain.NormalizeCategory(category)
	texts, ok := categoryCardTexts[category]
	if !ok {
		texts = categoryCardTexts["kids"]
	}
	found := -1
	for i, title := range titles {
		title = strings.ToLower(title)
		for _, text := range texts {
			if strings.Contains(title, text) {
				found = i
				break
			}
		}
	}
	if found >= 0 || !allowIndexFallback {
		return found
	}
	if idx, ok := categoryCardIndex[category]; ok && len(titles) > idx {
		return idx
	}
	return -1
}
