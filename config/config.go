package config

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig web server configuration
type WebConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
}

// DBConfig database configuration, type is one of postgres, mysql or sqlite
type DBConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// CatalogConfig controls the product sources and the category projection
type CatalogConfig struct {
	// Source is a file path or http(s) URL of the static {"products":[...]} document
	Source string `yaml:"source"`
	// RemoteURL points the remote store at another admin API instead of the local database
	RemoteURL       string `yaml:"remote_url"`
	RemoteTimeout   string `yaml:"remote_timeout"`
	RefreshInterval string `yaml:"refresh_interval"`
	// CategoryMatch is "exact" or "prefix"
	CategoryMatch     string `yaml:"category_match"`
	CardIndexFallback bool   `yaml:"card_index_fallback"`
}

type OverridesConfig struct {
	Path       string `yaml:"path"`
	QuotaBytes int64  `yaml:"quota_bytes"`
}

type UploadConfig struct {
	// Root is the site directory that Assets/ paths resolve against
	Root         string `yaml:"root"`
	Dir          string `yaml:"dir"`
	PublicPrefix string `yaml:"public_prefix"`
	MaxSize      int64  `yaml:"max_size"`
}

type OrderConfig struct {
	WhatsappNumber string `yaml:"whatsapp_number"`
}

type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

type AppConfig struct {
	System    SysConfig       `yaml:"system"`
	Web       WebConfig       `yaml:"web"`
	Database  DBConfig        `yaml:"database"`
	Logger    LogConfig       `yaml:"logger"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Overrides OverridesConfig `yaml:"overrides"`
	Upload    UploadConfig    `yaml:"upload"`
	Order     OrderConfig     `yaml:"order"`
	Admin     AdminConfig     `yaml:"admin"`
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

// RemoteTimeout parses catalog.remote_timeout, defaulting to 10s
func (c *AppConfig) RemoteTimeout() time.Duration {
	return parseDuration(c.Catalog.RemoteTimeout, 10*time.Second)
}

// RefreshInterval parses catalog.refresh_interval, defaulting to 2s
func (c *AppConfig) RefreshInterval() time.Duration {
	return parseDuration(c.Catalog.RefreshInterval, 2*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "AmaNiceStorefront",
		Location: "Africa/Johannesburg",
		Workdir:  "/var/storefront",
		Debug:    true,
	},
	Web: WebConfig{
		Host:   "0.0.0.0",
		Port:   8080,
		Secret: "9b6de5cc-0731-4bf1-8f5e-ama-nice-secret",
	},
	Database: DBConfig{
		Type:     "sqlite",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "storefront.db",
		User:     "storefront",
		Passwd:   "storefront",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "/var/storefront/logs/storefront.log",
	},
	Catalog: CatalogConfig{
		Source:            "data/products.json",
		RemoteTimeout:     "10s",
		RefreshInterval:   "2s",
		CategoryMatch:     "prefix",
		CardIndexFallback: true,
	},
	Overrides: OverridesConfig{
		Path:       "data/overrides.db",
		QuotaBytes: 5 * 1024 * 1024,
	},
	Upload: UploadConfig{
		Root:         ".",
		Dir:          "Assets/uploads",
		PublicPrefix: "Assets/uploads/",
		MaxSize:      10 * 1024 * 1024,
	},
	Order: OrderConfig{
		WhatsappNumber: "27731635803",
	},
	Admin: AdminConfig{
		Username: "admin",
	},
}

// LoadConfig reads a YAML file on top of the defaults and applies environment overrides.
// An empty or missing file yields the defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				panic(err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return &cfg
}

func (c *AppConfig) applyEnvOverrides() {
	setEnvValue("STOREFRONT_SYSTEM_WORKER_DIR", &c.System.Workdir)
	setEnvBoolValue("STOREFRONT_SYSTEM_DEBUG", &c.System.Debug)

	setEnvValue("STOREFRONT_WEB_HOST", &c.Web.Host)
	setEnvIntValue("STOREFRONT_WEB_PORT", &c.Web.Port)
	setEnvValue("STOREFRONT_WEB_SECRET", &c.Web.Secret)

	setEnvValue("STOREFRONT_DB_TYPE", &c.Database.Type)
	setEnvValue("STOREFRONT_DB_HOST", &c.Database.Host)
	setEnvIntValue("STOREFRONT_DB_PORT", &c.Database.Port)
	setEnvValue("STOREFRONT_DB_NAME", &c.Database.Name)
	setEnvValue("STOREFRONT_DB_USER", &c.Database.User)
	setEnvValue("STOREFRONT_DB_PWD", &c.Database.Passwd)
	setEnvBoolValue("STOREFRONT_DB_DEBUG", &c.Database.Debug)

	setEnvValue("STOREFRONT_LOGGER_MODE", &c.Logger.Mode)
	setEnvBoolValue("STOREFRONT_LOGGER_FILE_ENABLE", &c.Logger.FileEnable)

	setEnvValue("STOREFRONT_CATALOG_SOURCE", &c.Catalog.Source)
	setEnvValue("STOREFRONT_CATALOG_REMOTE_URL", &c.Catalog.RemoteURL)
	setEnvValue("STOREFRONT_CATALOG_CATEGORY_MATCH", &c.Catalog.CategoryMatch)

	setEnvValue("STOREFRONT_UPLOAD_ROOT", &c.Upload.Root)
	setEnvValue("STOREFRONT_UPLOAD_DIR", &c.Upload.Dir)
	setEnvInt64Value("STOREFRONT_UPLOAD_MAX_SIZE", &c.Upload.MaxSize)

	setEnvValue("STOREFRONT_WHATSAPP_NUMBER", &c.Order.WhatsappNumber)
	setEnvValue("STOREFRONT_ADMIN_USERNAME", &c.Admin.Username)
	setEnvValue("STOREFRONT_ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)
}

func setEnvValue(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToBool(v)
	}
}

func setEnvIntValue(name string, val *int) {
	if v := os.Getenv(name); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			*val = i
		}
	}
}

func setEnvInt64Value(name string, val *int64) {
	if v := os.Getenv(name); v != "" {
		if i, err := cast.ToInt64E(v); err == nil {
			*val = i
		}
	}
}
