package catalog

import (
	"strings"

	"github.com/amanice/storefront/internal/domain"
)

// ValidateNew checks a product before it is created in any store
func ValidateNew(p domain.Product) error {
	if strings.TrimSpace(p.Type) == "" {
		return validationErr("Product type is required")
	}
	if strings.TrimSpace(p.Category) == "" {
		return validationErr("Product category is required")
	}
	if strings.TrimSpace(p.Image) == "" {
		return validationErr("Product image is required")
	}
	if !domain.ValidCategory(p.Category) {
		return validationErr("Invalid category. Must be: %s", strings.Join(domain.Categories, ", "))
	}
	if p.Price != nil && *p.Price < 0 {
		return validationErr("Price cannot be negative")
	}
	if p.StockQuantity < 0 {
		return validationErr("Stock quantity cannot be negative")
	}
	return nil
}
