package main // Intake gateway entry point

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/tickethub/internal/config"
	"github.com/iliyamo/tickethub/internal/handler"
	"github.com/iliyamo/tickethub/internal/middleware"
	"github.com/iliyamo/tickethub/internal/router"
	"github.com/iliyamo/tickethub/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environment wins

	cfg := config.LoadServer()
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetPrefix("intake")
	e.Logger.SetLevel(glog.INFO)

	e.Use(echomw.Recover())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Printf("rate limiting disabled: %v", err)
	}
	limiter := middleware.PurchaseLimit(config.LoadRateLimitConfig(), rdb)

	pub := service.NewPublisher(cfg.AMQPURL, cfg.Queue, cfg.DeliveryLimit)
	router.RegisterRoutes(e)
	router.RegisterPurchase(e, handler.NewPurchaseHandler(pub), limiter, middleware.BodyLimit(cfg.BodyLimit))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
