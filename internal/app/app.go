package app

import (
	"context"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/amanice/storefront/config"
	"github.com/amanice/storefront/internal/cart"
	"github.com/amanice/storefront/internal/catalog"
	"github.com/amanice/storefront/internal/domain"
	"github.com/amanice/storefront/internal/kvstore"
	"github.com/amanice/storefront/internal/upload"
	"github.com/amanice/storefront/pkg/metrics"
)

const (
	overridesBucket = "overrides"
	cartsBucket     = "carts"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	bus       EventBus.Bus
	kvDB      *bolt.DB
	overrides *catalog.OverrideStore
	engine    *catalog.Engine
	carts     *cart.Manager
	uploads   *upload.Store
	adminHash string
	jobs      []*JobInfo
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ CatalogProvider   = (*Application)(nil)
	_ CartProvider      = (*Application)(nil)
	_ UploadProvider    = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig, bus: EventBus.New()}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Engine() *catalog.Engine {
	return a.engine
}

func (a *Application) Overrides() *catalog.OverrideStore {
	return a.overrides
}

func (a *Application) Carts() *cart.Manager {
	return a.carts
}

func (a *Application) Uploads() *upload.Store {
	return a.uploads
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) AdminPasswordHash() string {
	return a.adminHash
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	initLogger(cfg)

	// Initialize metrics with workdir convention
	err = metrics.InitMetrics(cfg.System.Workdir)
	if err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	if err := a.InitStores(); err != nil {
		panic(err)
	}

	go a.checkCatalog()

	a.initJob()
}

func initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

// InitStores opens the local KV file and builds the catalog engine, carts and uploads
func (a *Application) InitStores() error {
	cfg := a.appConfig
	kvDB, err := kvstore.Open(a.resolvePath(cfg.Overrides.Path))
	if err != nil {
		return err
	}
	a.kvDB = kvDB

	overridesKV, err := kvstore.NewBoltKV(kvDB, overridesBucket, cfg.Overrides.QuotaBytes)
	if err != nil {
		return err
	}
	cartsKV, err := kvstore.NewBoltKV(kvDB, cartsBucket, cfg.Overrides.QuotaBytes)
	if err != nil {
		return err
	}

	var remote catalog.RemoteStore
	if cfg.Catalog.RemoteURL != "" {
		remote = catalog.NewHTTPRemoteStore(cfg.Catalog.RemoteURL, cfg.RemoteTimeout())
		zap.L().Info("using http remote store", zap.String("namespace", "catalog"),
			zap.String("url", cfg.Catalog.RemoteURL))
	} else {
		if a.gormDB == nil {
			return errors.New("remote store requires a database")
		}
		remote = catalog.NewGormRemoteStore(a.gormDB)
	}

	a.overrides = catalog.NewOverrideStore(overridesKV)
	a.engine = catalog.NewEngine(
		catalog.NewCatalogSource(cfg.Catalog.Source, cfg.RemoteTimeout()),
		remote,
		a.overrides,
		a.bus,
	)
	a.engine.SetRemoteTimeout(cfg.RemoteTimeout())
	a.carts = cart.NewManager(cartsKV, cfg.Order.WhatsappNumber)
	a.uploads = upload.NewStore(cfg.Upload)
	a.checkAdmin()

	return a.bus.SubscribeAsync(catalog.TopicCatalogUpdated, func(action, id string) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout())
		defer cancel()
		a.engine.Refresh(ctx)
	}, true)
}

// resolvePath places relative data paths under the work directory
func (a *Application) resolvePath(p string) string {
	if filepath.IsAbs(p) || a.appConfig.System.Workdir == "" {
		return p
	}
	return filepath.Join(a.appConfig.System.Workdir, p)
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

// DropAll drops every application table
func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

// InitDb recreates the tables empty
func (a *Application) InitDb() {
	a.DropAll()
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	if a.kvDB != nil {
		_ = a.kvDB.Close()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
