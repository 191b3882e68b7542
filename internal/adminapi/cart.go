package adminapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/amanice/storefront/internal/cart"
	"github.com/amanice/storefront/internal/webserver"
	"github.com/amanice/storefront/pkg/common"
)

const cartSessionKey = "cart_id"

type cartItemPayload struct {
	Name       string `json:"name" validate:"required,max=255"`
	PriceRange string `json:"priceRange" validate:"max=100"`
}

func registerCartRoutes() {
	webserver.ApiGET("/cart", getCart)
	webserver.ApiDELETE("/cart", clearCart)
	webserver.ApiPOST("/cart/items", addCartItem)
	webserver.ApiDELETE("/cart/items/:index", removeCartItem)
	webserver.ApiPOST("/cart/checkout", checkoutCart)
}

// cartID returns the cart bound to the shopper session, creating one on first use
func cartID(c echo.Context) string {
	sess, err := session.Get(webserver.SessionName, c)
	if err != nil {
		zap.L().Debug("session decode failed, starting a new one", zap.String("namespace", "cart"), zap.Error(err))
	}
	if sess == nil {
		return common.UUID()
	}
	if id, ok := sess.Values[cartSessionKey].(string); ok && id != "" {
		return id
	}
	id := common.UUID()
	sess.Values[cartSessionKey] = id
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		zap.L().Warn("save session failed", zap.String("namespace", "cart"), zap.Error(err))
	}
	return id
}

func getCart(c echo.Context) error {
	return ok(c, GetAppContext(c).Carts().Lines(cartID(c)))
}

func clearCart(c echo.Context) error {
	lines, err := GetAppContext(c).Carts().Update(cartID(c), func(ct *cart.Cart) error {
		return ct.Clear()
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CART_ERROR", "Failed to clear cart", err.Error())
	}
	return ok(c, lines)
}

func addCartItem(c echo.Context) error {
	var payload cartItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse cart item", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	lines, err := GetAppContext(c).Carts().Update(cartID(c), func(ct *cart.Cart) error {
		return ct.AddItem(payload.Name, payload.PriceRange)
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CART_ERROR", "Failed to add item", err.Error())
	}
	return ok(c, lines)
}

func removeCartItem(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_INDEX", "Invalid cart index", nil)
	}
	lines, err := GetAppContext(c).Carts().Update(cartID(c), func(ct *cart.Cart) error {
		return ct.RemoveItem(index)
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CART_ERROR", "Failed to remove item", err.Error())
	}
	return ok(c, lines)
}

func checkoutCart(c echo.Context) error {
	order, err := GetAppContext(c).Carts().Checkout(cartID(c))
	if errors.Is(err, cart.ErrEmptyCart) {
		return fail(c, http.StatusBadRequest, "EMPTY_CART", "Your cart is empty", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CART_ERROR", "Checkout failed", err.Error())
	}
	return ok(c, order)
}
