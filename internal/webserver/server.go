package webserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/amanice/storefront/config"
)

const (
	// UserContextKey holds the *jwt.Token of an authenticated admin request
	UserContextKey = "user"
	SessionName    = "storefront"
	LoginPath      = "/api/admin/login"
)

// AdminServer is the single HTTP entry point: storefront API under /api,
// token protected admin API under /api/admin and the remote store
// contract endpoints under /admin.
type AdminServer struct {
	root   *echo.Echo
	api    *echo.Group
	admin  *echo.Group
	legacy *echo.Group
	cfg    *config.AppConfig
}

var server *AdminServer

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// Init builds the package level server; routes registered afterwards attach to it
func Init(cfg *config.AppConfig) *AdminServer {
	server = NewAdminServer(cfg)
	return server
}

func NewAdminServer(cfg *config.AppConfig) *AdminServer {
	s := &AdminServer{cfg: cfg}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", cfg.Upload.MaxSize*2/1024+64)))
	e.Use(requestLogger())
	e.Use(session.Middleware(sessions.NewCookieStore([]byte(cfg.Web.Secret))))

	assets := filepath.Join(cfg.Upload.Root, "Assets")
	e.Static("/Assets", assets)

	s.root = e
	s.api = e.Group("/api")
	s.admin = e.Group("/api/admin")
	s.admin.Use(echojwt.WithConfig(echojwt.Config{
		Skipper: func(c echo.Context) bool {
			return c.Path() == LoginPath
		},
		ContextKey: UserContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return ParseToken(cfg.Web.Secret, auth)
		},
	}))
	s.legacy = e.Group("/admin")
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("namespace", "web"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				zap.L().Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zap.L().Debug("request", fields...)
			return nil
		},
	})
}

// errorHandler answers unhandled errors with the {status, message} envelope
func (s *AdminServer) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("namespace", "web"),
			zap.String("path", c.Request().URL.Path), zap.Error(err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]interface{}{"status": "error", "message": msg})
}

// IssueToken signs an HS256 admin token valid for ttl
func IssueToken(secret, username string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"username": username,
		"role":     "admin",
		"exp":      time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates an HS256 token signed with secret
func ParseToken(secret, tokenString string) (*jwt.Token, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return token, nil
}

// CurrentUser returns the admin name of an authenticated request, or "" when there is none
func CurrentUser(c echo.Context) string {
	token, ok := c.Get(UserContextKey).(*jwt.Token)
	if !ok || token == nil {
		return ""
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if name, ok := claims["username"].(string); ok {
			return name
		}
	}
	return ""
}

func Echo() *echo.Echo {
	return server.root
}

func Listen() error {
	addr := fmt.Sprintf("%s:%d", server.cfg.Web.Host, server.cfg.Web.Port)
	zap.S().Infof("storefront web server listening on %s", addr)
	err := server.root.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func Shutdown(ctx context.Context) error {
	if server == nil {
		return nil
	}
	return server.root.Shutdown(ctx)
}

// ApiGET registers a public storefront route under /api
func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

// AdminGET registers a token protected route under /api/admin
func AdminGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.GET(path, h, m...)
}

func AdminPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.POST(path, h, m...)
}

func AdminPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.PUT(path, h, m...)
}

func AdminDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.DELETE(path, h, m...)
}

// LegacyGET registers a remote store contract route under /admin
func LegacyGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.legacy.GET(path, h, m...)
}

func LegacyPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.legacy.POST(path, h, m...)
}
