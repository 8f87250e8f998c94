package main // Purchase consumer entry point

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/tickethub/internal/config"
	"github.com/iliyamo/tickethub/internal/consumer"
	"github.com/iliyamo/tickethub/internal/database"
	"github.com/iliyamo/tickethub/internal/queue"
	"github.com/iliyamo/tickethub/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadConsumer()

	logger := glog.New("purchase-consumer")
	logger.SetOutput(os.Stdout)
	logger.SetLevel(glog.INFO)

	db, err := database.Open(database.Options{
		User:    cfg.DBUser,
		Pass:    cfg.DBPass,
		Host:    cfg.DBHost,
		Port:    cfg.DBPort,
		Name:    cfg.DBName,
		Timeout: cfg.DBTimeout,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	proc := consumer.NewProcessor(repository.NewPurchaseRepo(db, cfg.DBTimeout), logger)
	c := queue.NewConsumer(queue.Config{
		URL:             cfg.AMQPURL,
		Queue:           cfg.Queue,
		Workers:         cfg.Workers,
		DeliveryLimit:   cfg.DeliveryLimit,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, proc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("consuming %s with %d workers (env=%s)", cfg.Queue, cfg.Workers, cfg.Env)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("consumer stopped: %v", err)
	}
}
