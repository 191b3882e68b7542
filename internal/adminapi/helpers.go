package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amanice/storefront/internal/app"
	"github.com/amanice/storefront/internal/catalog"
	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/internal/webserver"
	"github.com/amanice/storefront/pkg/common"
)

const appContextKey = "appContext"

// Response is the success envelope of the /api routes
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
	Meta   *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// ErrorResponse is the failure envelope of the /api routes
type ErrorResponse struct {
	Status  string      `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Init attaches the application context to every request and registers all routes.
// webserver.Init must have been called first.
func Init(appCtx app.AppContext) {
	webserver.Echo().Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(appContextKey, appCtx)
			return next(c)
		}
	})
	registerStorefrontRoutes()
	registerCartRoutes()
	registerAuthRoutes()
	registerProductRoutes()
	registerUploadRoutes()
	registerExportRoutes()
	registerSchedulerRoutes()
	registerStatusRoutes()
}

func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(appContextKey).(app.AppContext)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB()
}

func getEngine(c echo.Context) *catalog.Engine {
	return GetAppContext(c).Engine()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
		Meta:   &Meta{Total: total, Page: page, PageSize: pageSize},
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, ErrorResponse{Status: "error", Code: code, Message: message, Details: details})
}

// legacyFail answers the /admin routes with the bare {status, message} body
func legacyFail(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]interface{}{"status": "error", "message": message})
}

func parsePagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("perPage"))
	if pageSize < 1 {
		pageSize, _ = strconv.Atoi(c.QueryParam("pageSize"))
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 20
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (string, error) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		return "", errors.New("empty id")
	}
	return id, nil
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", fields)
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
}

// catalogStatus maps catalog errors to an HTTP status
func catalogStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// catalogMessage is the client facing text of a catalog error
func catalogMessage(err error) string {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, catalog.ErrNotFound):
		return "Product not found"
	default:
		return "Internal server error"
	}
}

func catalogFail(c echo.Context, err error) error {
	status := catalogStatus(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("catalog operation failed", zap.String("namespace", "adminapi"),
			zap.String("path", c.Path()), zap.Error(err))
	}
	code := "INTERNAL_ERROR"
	switch status {
	case http.StatusBadRequest:
		code = "VALIDATION_ERROR"
	case http.StatusNotFound:
		code = "NOT_FOUND"
	}
	return fail(c, status, code, catalogMessage(err), nil)
}

// logOperation records an admin action in the operation log
func logOperation(c echo.Context, action, desc string) {
	logOperationAs(c, webserver.CurrentUser(c), action, desc)
}

func logOperationAs(c echo.Context, operator, action, desc string) {
	entry := domain.AdminLog{
		ID:        common.UUIDint64(),
		OprName:   common.IfEmptyStr(operator, "remote"),
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}
	if err := GetDB(c).Create(&entry).Error; err != nil {
		zap.L().Warn("write admin log failed", zap.String("namespace", "adminapi"), zap.Error(err))
	}
}
