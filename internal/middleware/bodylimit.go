package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

// BodyLimit wraps echo's BodyLimit so an oversize purchase is answered like
// any other rejected payload: 400 with an "Error: " line instead of 413.
func BodyLimit(limit string) echo.MiddlewareFunc {
	bl := echomw.BodyLimit(limit)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := bl(next)
		return func(c echo.Context) error {
			err := h(c)
			var he *echo.HTTPError
			if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
				c.Logger().Warnj(log.JSON{"event": "purchase_rejected", "error": "body too large", "limit": limit})
				return c.String(http.StatusBadRequest, "Error: request body exceeds "+limit)
			}
			return err
		}
	}
}
