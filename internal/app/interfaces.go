package app

import (
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/amanice/storefront/config"
	"github.com/amanice/storefront/internal/cart"
	"github.com/amanice/storefront/internal/catalog"
	"github.com/amanice/storefront/internal/upload"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
	Jobs() []JobInfo
	RunJobNow(name string) error
}

// CatalogProvider provides the merged product view and the local override store
type CatalogProvider interface {
	Engine() *catalog.Engine
	Overrides() *catalog.OverrideStore
}

// CartProvider provides session carts
type CartProvider interface {
	Carts() *cart.Manager
}

// UploadProvider provides product image storage
type UploadProvider interface {
	Uploads() *upload.Store
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	CatalogProvider
	CartProvider
	UploadProvider

	// AdminPasswordHash is the bcrypt hash the admin login is checked against
	AdminPasswordHash() string

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
