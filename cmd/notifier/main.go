package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/siibarnut/pimarket/internal/config"
	kafkax "github.com/siibarnut/pimarket/internal/kafka"
	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/notify"
	"github.com/siibarnut/pimarket/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.AppEnv == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
		Log:         logger,
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, market.TopicOrderPaid, workers, logger)

	go func() {
		logger.Info("notifier consumer started",
			zap.String("group", group),
			zap.String("topic", market.TopicOrderPaid),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleOrderPaid); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
