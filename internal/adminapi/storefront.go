package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/amanice/storefront/internal/catalog"
	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/internal/webserver"
)

type categoryPage struct {
	catalog.GroupedView
	// CardIndex is the home page card for the category, -1 when none matches
	CardIndex *int `json:"cardIndex,omitempty"`
}

// registerStorefrontRoutes registers the read only shopper routes
func registerStorefrontRoutes() {
	webserver.ApiGET("/products", listStoreProducts)
	webserver.ApiGET("/products/:id", getStoreProduct)
	webserver.ApiGET("/categories/:category", getCategory)
	webserver.ApiGET("/featured", listFeatured)
	webserver.ApiGET("/recent", listRecent)
}

func listStoreProducts(c echo.Context) error {
	products := getEngine(c).Snapshot(c.Request().Context())
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		mode := catalog.ParseMatchMode(GetAppContext(c).Config().Catalog.CategoryMatch)
		filtered := make([]domain.Product, 0, len(products))
		for _, p := range products {
			if catalog.CategoryMatches(p.Category, category, mode) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	return ok(c, products)
}

func getStoreProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	p, err := getEngine(c).Get(c.Request().Context(), id)
	if err != nil {
		return catalogFail(c, err)
	}
	return ok(c, p)
}

func getCategory(c echo.Context) error {
	category := domain.NormalizeCategory(c.Param("category"))
	cfg := GetAppContext(c).Config().Catalog
	products := getEngine(c).Snapshot(c.Request().Context())
	page := categoryPage{
		GroupedView: catalog.Project(products, category, catalog.ProjectOptions{
			Match: catalog.ParseMatchMode(cfg.CategoryMatch),
		}),
	}
	if titles := strings.TrimSpace(c.QueryParam("titles")); titles != "" {
		idx := catalog.ResolveCategoryCard(strings.Split(titles, ","), category, cfg.CardIndexFallback)
		page.CardIndex = &idx
	}
	return ok(c, page)
}

func listFeatured(c echo.Context) error {
	return ok(c, catalog.Featured(getEngine(c).Snapshot(c.Request().Context())))
}

func listRecent(c echo.Context) error {
	return ok(c, catalog.RecentlyAdded(getEngine(c).Snapshot(c.Request().Context()), catalog.RecentLimit))
}
