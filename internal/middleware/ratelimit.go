package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tickethub/internal/config"
)

// purchaseWindow counts one submission in a fixed window and returns the
// count together with the milliseconds left before the window resets.
var purchaseWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if n == 1 or ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// PurchaseLimit caps POST /purchase submissions per client address.  Intake
// is anonymous, so the address is the whole key.  The limiter is a no-op when
// disabled or without Redis, and lets requests through when Redis errors.
func PurchaseLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	limit := int64(cfg.Limit)
	window := cfg.Window.Milliseconds()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			res, err := purchaseWindow.Run(c.Request().Context(), rdb, []string{purchaseKey(cfg.Prefix, ip)}, window).Int64Slice()
			if err != nil || len(res) != 2 {
				fields := log.JSON{"event": "ratelimit_unavailable", "remote_ip": ip}
				if err != nil {
					fields["error"] = err.Error()
				}
				c.Logger().Warnj(fields)
				return next(c)
			}
			count, ttl := res[0], res[1]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(limit-count, 0), 10))
			if count <= limit {
				return next(c)
			}

			h.Set("Retry-After", strconv.Itoa(retryAfter(time.Duration(ttl)*time.Millisecond)))
			c.Logger().Warnj(log.JSON{"event": "purchase_throttled", "remote_ip": ip, "count": count})
			return c.String(http.StatusTooManyRequests, "Error: too many purchase requests, retry later")
		}
	}
}

func purchaseKey(prefix, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return prefix + ":purchase:" + ip
}

// retryAfter rounds up to whole seconds; clients are never told to retry
// immediately.
func retryAfter(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
