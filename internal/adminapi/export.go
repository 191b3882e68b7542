package adminapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/amanice/storefront/internal/catalog"
	"github.com/amanice/storefront/internal/webserver"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type importResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func registerExportRoutes() {
	webserver.AdminGET("/products/export.csv", exportProductsCSV)
	webserver.AdminGET("/products/export.xlsx", exportProductsXLSX)
	webserver.AdminPOST("/products/import.csv", importProductsCSV)
}

func attachment(c echo.Context, ext string) {
	name := fmt.Sprintf("products_%s.%s", time.Now().Format("20060102150405"), ext)
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+name)
}

func exportProductsCSV(c echo.Context) error {
	products := getEngine(c).Snapshot(c.Request().Context())
	attachment(c, "csv")
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return catalog.WriteCSV(c.Response(), products)
}

func exportProductsXLSX(c echo.Context) error {
	products := getEngine(c).Snapshot(c.Request().Context())
	attachment(c, "xlsx")
	c.Response().Header().Set(echo.HeaderContentType, xlsxContentType)
	c.Response().WriteHeader(http.StatusOK)
	return catalog.WriteXLSX(c.Response(), products)
}

// importProductsCSV saves every row as a new admin product
func importProductsCSV(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "CSV file is required", nil)
	}
	src, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read CSV file", nil)
	}
	defer src.Close()

	products, err := catalog.ReadCSV(src)
	if err != nil {
		return catalogFail(c, err)
	}
	engine := getEngine(c)
	ctx := c.Request().Context()
	var result importResult
	for i, p := range products {
		p.ID = ""
		p.IsDefault = false
		if _, err := engine.Save(ctx, p); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", i+2, catalogMessage(err)))
			continue
		}
		result.Imported++
	}
	zap.L().Info("products imported", zap.String("namespace", "adminapi"),
		zap.Int("imported", result.Imported), zap.Int("failed", result.Failed))
	logOperation(c, "import", fmt.Sprintf("imported %d products", result.Imported))
	return ok(c, result)
}
