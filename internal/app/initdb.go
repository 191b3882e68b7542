package app

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amanice/storefront/internal/domain"
)

// DefaultAdminPassword is accepted when no admin.password_hash is configured
const DefaultAdminPassword = "amanice"

// checkAdmin resolves the admin password hash, falling back to DefaultAdminPassword
func (a *Application) checkAdmin() {
	hash := strings.TrimSpace(a.appConfig.Admin.PasswordHash)
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err == nil {
			a.adminHash = hash
			return
		}
		zap.L().Error("admin.password_hash is not a bcrypt hash, using the default password")
	}
	generated, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Error("failed to hash default admin password", zap.Error(err))
		return
	}
	a.adminHash = string(generated)
	zap.L().Warn("no admin password configured, using the default password",
		zap.String("username", a.appConfig.Admin.Username))
}

// checkCatalog warms the merged view and reports what each source contributed
func (a *Application) checkCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), a.appConfig.RemoteTimeout())
	defer cancel()

	var stored int64
	if a.gormDB != nil {
		a.gormDB.Model(&domain.ProductRecord{}).Count(&stored)
	}
	products := a.engine.Refresh(ctx)
	defaults := 0
	for _, p := range products {
		if p.IsDefault {
			defaults++
		}
	}
	if defaults == 0 {
		zap.L().Warn("catalog source provided no products", zap.String("source", a.appConfig.Catalog.Source))
	}
	zap.L().Info("initialized product catalog",
		zap.Int("total", len(products)),
		zap.Int("default", defaults),
		zap.Int64("stored", stored),
		zap.Bool("fallback", a.engine.UsingFallback()))
}
