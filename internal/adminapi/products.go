package adminapi

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/amanice/storefront/internal/catalog"
	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/internal/webserver"
)

// registerProductRoutes registers the remote store contract under /admin and
// the merged view product management under /api/admin
func registerProductRoutes() {
	webserver.LegacyGET("/getProducts", legacyListProducts)
	webserver.LegacyPOST("/saveProduct", legacySaveProduct)
	webserver.LegacyPOST("/updateProduct", legacyUpdateProduct)
	webserver.LegacyPOST("/deleteProduct", legacyDeleteProduct)

	webserver.AdminGET("/products", listProducts)
	webserver.AdminGET("/products/:id", getProduct)
	webserver.AdminPOST("/products", createProduct)
	webserver.AdminPUT("/products/:id", updateProduct)
	webserver.AdminDELETE("/products/:id", deleteProduct)
}

func remoteStore(c echo.Context) *catalog.GormRemoteStore {
	return catalog.NewGormRemoteStore(GetDB(c))
}

// refreshLater rebuilds the merged view after a direct remote store write
func refreshLater(c echo.Context) {
	engine := getEngine(c)
	err := ants.Submit(func() {
		engine.Refresh(context.Background())
	})
	if err != nil {
		zap.L().Warn("schedule catalog refresh failed", zap.String("namespace", "adminapi"), zap.Error(err))
	}
}

func legacyCatalogFail(c echo.Context, err error) error {
	status := catalogStatus(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("product store failed", zap.String("namespace", "adminapi"),
			zap.String("path", c.Path()), zap.Error(err))
		return legacyFail(c, status, "Database error")
	}
	return legacyFail(c, status, catalogMessage(err))
}

func bindProductBody(c echo.Context) (map[string]interface{}, error) {
	body := make(map[string]interface{})
	if err := c.Bind(&body); err != nil {
		return nil, err
	}
	return body, nil
}

// productFromBody builds a new product from a loosely typed body; the stores validate it
func productFromBody(body map[string]interface{}) (domain.Product, error) {
	patch, err := catalog.DecodePatch(body)
	if err != nil {
		return domain.Product{}, err
	}
	var p domain.Product
	patch.Apply(&p)
	p.ID = strings.TrimSpace(cast.ToString(body["id"]))
	p.IsDefault = cast.ToBool(body["isDefault"])
	p.OriginalID = strings.TrimSpace(cast.ToString(body["originalId"]))
	if p.OriginalID == "" {
		p.OriginalID = strings.TrimSpace(cast.ToString(body["original_id"]))
	}
	if added := cast.ToString(body["dateAdded"]); added != "" {
		_ = p.DateAdded.UnmarshalJSON([]byte(added))
	}
	return p, nil
}

func legacyListProducts(c echo.Context) error {
	products, ferr := remoteStore(c).List(c.Request().Context())
	if ferr != nil {
		return legacyCatalogFail(c, ferr)
	}
	return c.JSON(http.StatusOK, products)
}

func legacySaveProduct(c echo.Context) error {
	body, err := bindProductBody(c)
	if err != nil {
		return legacyFail(c, http.StatusBadRequest, "Invalid JSON data")
	}
	p, err := productFromBody(body)
	if err != nil {
		return legacyCatalogFail(c, err)
	}
	id, err := remoteStore(c).Create(c.Request().Context(), p)
	if err != nil {
		return legacyCatalogFail(c, err)
	}
	logOperation(c, "save", "saved product "+id)
	refreshLater(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"id":      id,
		"message": "Product saved successfully",
	})
}

func legacyUpdateProduct(c echo.Context) error {
	body, err := bindProductBody(c)
	if err != nil {
		return legacyFail(c, http.StatusBadRequest, "Invalid JSON data")
	}
	id := strings.TrimSpace(cast.ToString(body["id"]))
	if id == "" {
		return legacyFail(c, http.StatusBadRequest, "Product ID is required")
	}
	patch, err := catalog.DecodePatch(body)
	if err != nil {
		return legacyCatalogFail(c, err)
	}
	if err := remoteStore(c).Update(c.Request().Context(), id, patch); err != nil {
		return legacyCatalogFail(c, err)
	}
	logOperation(c, "update", "updated product "+id)
	refreshLater(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Product updated successfully",
	})
}

func legacyDeleteProduct(c echo.Context) error {
	body, err := bindProductBody(c)
	if err != nil {
		return legacyFail(c, http.StatusBadRequest, "Invalid JSON data")
	}
	id := strings.TrimSpace(cast.ToString(body["id"]))
	if id == "" {
		return legacyFail(c, http.StatusBadRequest, "Product ID is required")
	}
	if err := remoteStore(c).Delete(c.Request().Context(), id); err != nil {
		return legacyCatalogFail(c, err)
	}
	logOperation(c, "delete", "deleted product "+id)
	refreshLater(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Product deleted successfully",
	})
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	products := getEngine(c).Snapshot(c.Request().Context())

	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))
	category := domain.NormalizeCategory(c.QueryParam("category"))
	rows := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Type), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			continue
		}
		rows = append(rows, p)
	}

	// merged order unless a known sort field is given
	sortField := strings.TrimSpace(c.QueryParam("sort"))
	desc := !strings.EqualFold(strings.TrimSpace(c.QueryParam("order")), "ASC")
	if less, ok := productSorts[sortField]; ok {
		sort.SliceStable(rows, func(i, j int) bool {
			if desc {
				return less(rows[j], rows[i])
			}
			return less(rows[i], rows[j])
		})
	}

	total := int64(len(rows))
	start := (page - 1) * pageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return paged(c, rows[start:end], total, page, pageSize)
}

var productSorts = map[string]func(a, b domain.Product) bool{
	"type":     func(a, b domain.Product) bool { return strings.ToLower(a.Type) < strings.ToLower(b.Type) },
	"category": func(a, b domain.Product) bool { return a.Category < b.Category },
	"price": func(a, b domain.Product) bool {
		return b.Price != nil && (a.Price == nil || *a.Price < *b.Price)
	},
	"stock":     func(a, b domain.Product) bool { return a.Stock() < b.Stock() },
	"dateAdded": func(a, b domain.Product) bool { return a.DateAdded.Before(b.DateAdded.Time) },
}

func getProduct(c echo.Context) error {
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

func createProduct(c echo.Context) error {
	body, err := bindProductBody(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", nil)
	}
	p, err := productFromBody(body)
	if err != nil {
		return catalogFail(c, err)
	}
	saved, err := getEngine(c).Save(c.Request().Context(), p)
	if err != nil {
		return catalogFail(c, err)
	}
	logOperation(c, "save", "saved product "+saved.ID)
	return ok(c, saved)
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	body, err := bindProductBody(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", nil)
	}
	patch, err := catalog.DecodePatch(body)
	if err != nil {
		return catalogFail(c, err)
	}
	engine := getEngine(c)
	ctx := c.Request().Context()
	if err := engine.Update(ctx, id, patch); err != nil {
		return catalogFail(c, err)
	}
	logOperation(c, "update", "updated product "+id)
	p, err := engine.Get(ctx, id)
	if err != nil {
		return ok(c, map[string]interface{}{"id": id})
	}
	return ok(c, p)
}

func deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	isDefault := cast.ToBool(c.QueryParam("default"))
	if err := getEngine(c).Delete(c.Request().Context(), id, isDefault); err != nil {
		return catalogFail(c, err)
	}
	logOperation(c, "delete", "deleted product "+id)
	return ok(c, map[string]interface{}{"id": id})
}
