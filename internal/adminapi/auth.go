package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amanice/storefront/internal/webserver"
)

const tokenTTL = 12 * time.Hour

type loginPayload struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

func registerAuthRoutes() {
	webserver.AdminPOST("/login", login)
	webserver.AdminGET("/me", currentAdmin)
}

func login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse login parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	appCtx := GetAppContext(c)
	cfg := appCtx.Config()
	username := strings.TrimSpace(payload.Username)
	if username != cfg.Admin.Username ||
		bcrypt.CompareHashAndPassword([]byte(appCtx.AdminPasswordHash()), []byte(payload.Password)) != nil {
		zap.L().Warn("admin login rejected", zap.String("namespace", "adminapi"),
			zap.String("username", username), zap.String("ip", c.RealIP()))
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}
	token, err := webserver.IssueToken(cfg.Web.Secret, username, tokenTTL)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err.Error())
	}
	logOperationAs(c, username, "login", "admin login")
	return ok(c, map[string]interface{}{
		"token":     token,
		"username":  username,
		"expiresAt": time.Now().Add(tokenTTL).Unix(),
	})
}

func currentAdmin(c echo.Context) error {
	return ok(c, map[string]interface{}{"username": webserver.CurrentUser(c)})
}
