package domain

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ProductKind discriminates regular clothing from shoe products
type ProductKind string

const (
	KindRegular ProductKind = "regular"
	KindShoe    ProductKind = "shoe"
)

// Categories lists the only accepted product categories
var Categories = []string{"men", "women", "kids"}

// NormalizeCategory lower-cases and trims a category
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// ValidCategory reports whether the normalized category is one of Categories
func ValidCategory(category string) bool {
	c := NormalizeCategory(category)
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ShoeSize is one stocked size of a shoe product
type ShoeSize struct {
	Brand string `json:"brand"`
	Size  string `json:"size"`
	Qty   int    `json:"qty"`
}

// UnmarshalJSON accepts numeric or string size and qty values
func (s *ShoeSize) UnmarshalJSON(data []byte) error {
	var raw struct {
		Brand interface{} `json:"brand"`
		Size  interface{} `json:"size"`
		Qty   interface{} `json:"qty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Brand = cast.ToString(raw.Brand)
	s.Size = cast.ToString(raw.Size)
	s.Qty = cast.ToInt(raw.Qty)
	return nil
}

// Product is a catalog entry as seen by the storefront. It is the merged-view shape
// shared by the static catalog, the remote store and the local override store.
type Product struct {
	ID            string      `json:"id"`
	Kind          ProductKind `json:"kind"`
	Type          string      `json:"type"`
	Category      string      `json:"category"`
	Gender        string      `json:"gender,omitempty"`
	Price         *float64    `json:"price"`
	PriceRange    string      `json:"priceRange,omitempty"`
	Description   string      `json:"description,omitempty"`
	Image         string      `json:"image"`
	StockQuantity int         `json:"stockQuantity"`
	StockNumber   string      `json:"stockNumber,omitempty"`
	Size          string      `json:"size,omitempty"`
	IsShoe        bool        `json:"isShoe"`
	ShoeBrand     string      `json:"shoeBrand,omitempty"`
	ShoeSizes     []ShoeSize  `json:"shoeSizes,omitempty"`
	IsDefault     bool        `json:"isDefault"`
	OriginalID    string      `json:"originalId,omitempty"`
	DateAdded     Timestamp   `json:"dateAdded"`
}

// UnmarshalJSON coerces loosely typed fields (numeric ids, string prices, 0/1 flags)
// and derives Kind from isShoe.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            interface{} `json:"id"`
		Kind          ProductKind `json:"kind"`
		Type          string      `json:"type"`
		Category      string      `json:"category"`
		Gender        string      `json:"gender"`
		Price         interface{} `json:"price"`
		PriceRange    string      `json:"priceRange"`
		Description   string      `json:"description"`
		Image         string      `json:"image"`
		ImageURL      string      `json:"imageURL"`
		ImagePath     string      `json:"imagePath"`
		StockQuantity interface{} `json:"stockQuantity"`
		StockNumber   interface{} `json:"stockNumber"`
		Size          interface{} `json:"size"`
		IsShoe        interface{} `json:"isShoe"`
		ShoeBrand     interface{} `json:"shoeBrand"`
		ShoeSizes     []ShoeSize  `json:"shoeSizes"`
		IsDefault     bool        `json:"isDefault"`
		OriginalID    interface{} `json:"originalId"`
		DateAdded     Timestamp   `json:"dateAdded"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Product{
		ID:            cast.ToString(raw.ID),
		Kind:          raw.Kind,
		Type:          raw.Type,
		Category:      raw.Category,
		Gender:        raw.Gender,
		Price:         toFloatPtr(raw.Price),
		PriceRange:    raw.PriceRange,
		Description:   raw.Description,
		Image:         firstNonEmpty(raw.Image, raw.ImageURL, raw.ImagePath),
		StockQuantity: cast.ToInt(raw.StockQuantity),
		StockNumber:   cast.ToString(raw.StockNumber),
		Size:          cast.ToString(raw.Size),
		IsShoe:        toBool(raw.IsShoe) || raw.Kind == KindShoe,
		ShoeBrand:     cast.ToString(raw.ShoeBrand),
		ShoeSizes:     raw.ShoeSizes,
		IsDefault:     raw.IsDefault,
		OriginalID:    cast.ToString(raw.OriginalID),
		DateAdded:     raw.DateAdded,
	}
	p.Kind = p.kind()
	return nil
}

func (p *Product) kind() ProductKind {
	if p.IsShoe {
		return KindShoe
	}
	return KindRegular
}

// Normalize trims text fields, lower-cases the category and sets Kind
func (p *Product) Normalize() {
	p.ID = strings.TrimSpace(p.ID)
	p.Type = strings.TrimSpace(p.Type)
	p.Category = NormalizeCategory(p.Category)
	p.Image = strings.TrimSpace(p.Image)
	p.Kind = p.kind()
	if p.Kind == KindRegular {
		p.ShoeSizes = nil
	}
}

// Stock returns the available quantity, summing sizes for shoes
func (p Product) Stock() int {
	if p.Kind == KindShoe && len(p.ShoeSizes) > 0 {
		total := 0
		for _, s := range p.ShoeSizes {
			total += s.Qty
		}
		return total
	}
	return p.StockQuantity
}

func toFloatPtr(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case float64:
		return b != 0
	case string:
		return b == "1" || cast.ToBool(b)
	default:
		return cast.ToBool(v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ProductRecord is an admin-entered product row of the remote store
type ProductRecord struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Type          string     `gorm:"size:255;index" json:"type"`
	Category      string     `gorm:"size:32;index" json:"category"`
	Gender        string     `gorm:"size:32" json:"gender"`
	Price         *float64   `json:"price"`
	PriceRange    string     `gorm:"size:255" json:"price_range"`
	Description   string     `gorm:"type:text" json:"description"`
	Image         string     `gorm:"type:text" json:"image"`
	StockQuantity int        `json:"stock_quantity"`
	StockNumber   string     `gorm:"size:100" json:"stock_number"`
	Size          string     `gorm:"size:100" json:"size"`
	IsShoe        bool       `json:"is_shoe"`
	ShoeBrand     string     `gorm:"size:255" json:"shoe_brand"`
	ShoeSizes     []ShoeSize `gorm:"serializer:json" json:"shoe_sizes"`
	// OriginalID is the catalog product this row replaces
	OriginalID    string     `gorm:"size:100;index" json:"original_id"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (ProductRecord) TableName() string {
	return "products"
}

// ToProduct converts a stored row into the storefront shape
func (r ProductRecord) ToProduct() Product {
	p := Product{
		ID:            cast.ToString(r.ID),
		Type:          r.Type,
		Category:      r.Category,
		Gender:        r.Gender,
		Price:         r.Price,
		PriceRange:    r.PriceRange,
		Description:   r.Description,
		Image:         r.Image,
		StockQuantity: r.StockQuantity,
		StockNumber:   r.StockNumber,
		Size:          r.Size,
		IsShoe:        r.IsShoe,
		ShoeBrand:     r.ShoeBrand,
		ShoeSizes:     r.ShoeSizes,
		OriginalID:    r.OriginalID,
		DateAdded:     Timestamp{Time: r.CreatedAt},
	}
	p.Kind = p.kind()
	return p
}

// NewProductRecord builds a row from a storefront product; the id is assigned by the database
func NewProductRecord(p Product) ProductRecord {
	return ProductRecord{
		Type:          p.Type,
		Category:      NormalizeCategory(p.Category),
		Gender:        p.Gender,
		Price:         p.Price,
		PriceRange:    p.PriceRange,
		Description:   p.Description,
		Image:         p.Image,
		StockQuantity: p.StockQuantity,
		StockNumber:   p.StockNumber,
		Size:          p.Size,
		IsShoe:        p.IsShoe,
		ShoeBrand:     p.ShoeBrand,
		ShoeSizes:     p.ShoeSizes,
		OriginalID:    p.OriginalID,
	}
}
