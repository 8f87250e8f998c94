package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tickethub/internal/handler"
)

// RegisterRoutes registers the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPurchase mounts the anonymous intake endpoint.  Route-level
// middleware (rate and body limits) applies only here so health checks are
// never throttled.
func RegisterPurchase(e *echo.Echo, h *handler.PurchaseHandler, mw ...echo.MiddlewareFunc) {
	e.POST("/purchase", h.Purchase, mw...)
}
