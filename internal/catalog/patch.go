package catalog

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/amanice/storefront/internal/domain"
)

// ProductPatch is a partial update. Nil fields are left untouched.
type ProductPatch struct {
	Type          *string            `json:"type,omitempty"`
	Category      *string            `json:"category,omitempty"`
	Gender        *string            `json:"gender,omitempty"`
	Price         *float64           `json:"price,omitempty"`
	PriceRange    *string            `json:"priceRange,omitempty"`
	Description   *string            `json:"description,omitempty"`
	Image         *string            `json:"image,omitempty"`
	StockQuantity *int               `json:"stockQuantity,omitempty"`
	StockNumber   *string            `json:"stockNumber,omitempty"`
	Size          *string            `json:"size,omitempty"`
	IsShoe        *bool              `json:"isShoe,omitempty"`
	ShoeBrand     *string            `json:"shoeBrand,omitempty"`
	ShoeSizes     *[]domain.ShoeSize `json:"shoeSizes,omitempty"`
}

var patchKeyAliases = map[string]string{
	"price_range":    "priceRange",
	"stock_quantity": "stockQuantity",
	"stock_number":   "stockNumber",
	"is_shoe":        "isShoe",
	"shoe_brand":     "shoeBrand",
	"shoe_sizes":     "shoeSizes",
	"imageURL":       "image",
	"imagePath":      "image",
	"image_url":      "image",
}

// DecodePatch builds a patch from a loosely typed request body. Keys may be
// camelCase or snake_case; unknown keys and the id are ignored.
func DecodePatch(input map[string]interface{}) (ProductPatch, error) {
	normalized := make(map[string]interface{}, len(input))
	for k, v := range input {
		if alias, ok := patchKeyAliases[k]; ok {
			k = alias
		}
		if k == "id" {
			continue
		}
		normalized[k] = v
	}
	var patch ProductPatch
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &patch,
	})
	if err != nil {
		return patch, err
	}
	if err := decoder.Decode(normalized); err != nil {
		return patch, errors.Wrap(&ValidationError{Message: "Invalid product fields"}, err.Error())
	}
	if patch.Category != nil {
		c := domain.NormalizeCategory(*patch.Category)
		patch.Category = &c
	}
	return patch, nil
}

// Empty reports whether the patch changes nothing
func (p ProductPatch) Empty() bool {
	return p.Type == nil && p.Category == nil && p.Gender == nil && p.Price == nil &&
		p.PriceRange == nil && p.Description == nil && p.Image == nil &&
		p.StockQuantity == nil && p.StockNumber == nil && p.Size == nil &&
		p.IsShoe == nil && p.ShoeBrand == nil && p.ShoeSizes == nil
}

// Validate rejects an invalid category or negative numbers
func (p ProductPatch) Validate() error {
	if p.Category != nil && !domain.ValidCategory(*p.Category) {
		return validationErr("Invalid category")
	}
	if p.Price != nil && *p.Price < 0 {
		return validationErr("Price cannot be negative")
	}
	if p.StockQuantity != nil && *p.StockQuantity < 0 {
		return validationErr("Stock quantity cannot be negative")
	}
	return nil
}

// Apply copies the set fields onto product
func (p ProductPatch) Apply(product *domain.Product) {
	setString(&product.Type, p.Type)
	setString(&product.Category, p.Category)
	setString(&product.Gender, p.Gender)
	setString(&product.PriceRange, p.PriceRange)
	setString(&product.Description, p.Description)
	setString(&product.Image, p.Image)
	setString(&product.StockNumber, p.StockNumber)
	setString(&product.Size, p.Size)
	setString(&product.ShoeBrand, p.ShoeBrand)
	if p.Price != nil {
		v := *p.Price
		product.Price = &v
	}
	if p.StockQuantity != nil {
		product.StockQuantity = *p.StockQuantity
	}
	if p.IsShoe != nil {
		product.IsShoe = *p.IsShoe
	}
	if p.ShoeSizes != nil {
		product.ShoeSizes = append([]domain.ShoeSize(nil), (*p.ShoeSizes)...)
	}
	product.Normalize()
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
