package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"

	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/internal/webserver"
	"github.com/amanice/storefront/pkg/metrics"
)

// CatalogSummary counts the merged view by source
type CatalogSummary struct {
	Total         int  `json:"total"`
	Default       int  `json:"default"`
	Admin         int  `json:"admin"`
	Local         int  `json:"local"`
	Tombstones    int  `json:"tombstones"`
	UsingFallback bool `json:"usingFallback"`
}

// ServerInfo reports the database and runtime counters
type ServerInfo struct {
	DatabaseType    string           `json:"databaseType"`
	DatabaseVersion string           `json:"databaseVersion"`
	DatabaseSize    string           `json:"databaseSize,omitempty"`
	ServerTime      string           `json:"serverTime"`
	Catalog         CatalogSummary   `json:"catalog"`
	Metrics         map[string]int64 `json:"metrics"`
}

var statusMetrics = []string{
	"catalog_refresh", "catalog_products", "catalog_remote_fallback",
	"catalog_writes", "catalog_local_writes", "storefront_cpuuse", "storefront_memuse",
}

func registerStatusRoutes() {
	webserver.AdminGET("/status", getServerInfo)
	webserver.AdminGET("/logs", listAdminLogs)
}

func getServerInfo(c echo.Context) error {
	appCtx := GetAppContext(c)
	db := GetDB(c)
	dbType := db.Dialector.Name()

	info := ServerInfo{
		DatabaseType: dbType,
		ServerTime:   time.Now().Format(domain.TimeLayout),
		Metrics:      make(map[string]int64, len(statusMetrics)),
	}

	switch dbType {
	case "postgres":
		var version, size string
		db.Raw("SELECT version()").Scan(&version)
		db.Raw("SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&size)
		info.DatabaseVersion, info.DatabaseSize = version, size
	case "mysql":
		var version string
		db.Raw("SELECT VERSION()").Scan(&version)
		info.DatabaseVersion = "MySQL " + version
	case "sqlite":
		var version string
		db.Raw("SELECT sqlite_version()").Scan(&version)
		info.DatabaseVersion = "SQLite " + version

		var pageCount, pageSize int64
		db.Raw("PRAGMA page_count").Scan(&pageCount)
		db.Raw("PRAGMA page_size").Scan(&pageSize)
		info.DatabaseSize = bytes.Format(pageCount * pageSize)
	}

	products := appCtx.Engine().Snapshot(c.Request().Context())
	summary := CatalogSummary{Total: len(products), UsingFallback: appCtx.Engine().UsingFallback()}
	for _, p := range products {
		switch {
		case p.IsDefault:
			summary.Default++
		case strings.HasPrefix(p.ID, "admin-"):
			summary.Local++
		default:
			summary.Admin++
		}
	}
	if tombstones, err := appCtx.Overrides().Tombstones(); err == nil {
		summary.Tombstones = len(tombstones)
	}
	info.Catalog = summary

	for _, name := range statusMetrics {
		info.Metrics[name] = metrics.Value(name)
	}
	return ok(c, info)
}

func listAdminLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.AdminLog{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		if db.Dialector.Name() == "postgres" {
			db = db.Where("opr_name ILIKE ? OR opt_desc ILIKE ?", "%"+q+"%", "%"+q+"%")
		} else {
			db = db.Where("LOWER(opr_name) LIKE ? OR LOWER(opt_desc) LIKE ?", "%"+strings.ToLower(q)+"%", "%"+strings.ToLower(q)+"%")
		}
	}
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		db = db.Where("opt_action = ?", action)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query admin logs", err.Error())
	}

	var logs []domain.AdminLog
	if err := db.Order("opt_time DESC").Offset((page-1)*pageSize).Limit(pageSize).Find(&logs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query admin logs", err.Error())
	}

	return paged(c, logs, total, page, pageSize)
}
