package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/siibarnut/pimarket/internal/cart"
	"github.com/siibarnut/pimarket/internal/checkout"
	"github.com/siibarnut/pimarket/internal/config"
	"github.com/siibarnut/pimarket/internal/httpx"
	kafkax "github.com/siibarnut/pimarket/internal/kafka"
	"github.com/siibarnut/pimarket/internal/market"
	"github.com/siibarnut/pimarket/internal/pi"
	"github.com/siibarnut/pimarket/internal/postgres"
	"github.com/siibarnut/pimarket/internal/reconcile"
	"github.com/siibarnut/pimarket/internal/redisx"
	"github.com/siibarnut/pimarket/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.AppEnv)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, 8)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderCreated, 1024, logger)
	pApproved := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicPaymentApproved, 1024, logger)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderPaid, 1024, logger)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicOrderCancelled, 1024, logger)
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicReconcileFailed, 256, logger)
	producers := []*kafkax.Producer{pCreated, pApproved, pPaid, pCancelled, pFailed}
	for _, p := range producers {
		p.Start(ctx)
	}

	// External collaborators
	platform := pi.NewClient(cfg.PlatformAPIURL, cfg.PlatformAPIKey, cfg.PlatformTimeout)
	verifier := pi.NewVerifier(cfg.HorizonTimeout)

	// Core services
	ledger := &store.Store{DB: db}
	carts := cart.NewStore(rdb)

	engine := reconcile.NewEngine(ledger, platform, verifier, logger)
	engine.ServiceName = cfg.ServiceName
	engine.ProducerApproved = pApproved
	engine.ProducerPaid = pPaid
	engine.ProducerCancelled = pCancelled
	engine.ProducerFailed = pFailed

	co := &checkout.Service{
		Carts:       carts,
		Ledger:      ledger,
		Producer:    pCreated,
		ServiceName: cfg.ServiceName,
		Log:         logger,
	}

	// Router & handlers
	router := httpx.NewRouter()
	(&httpx.PaymentsHandler{Engine: engine, Log: logger}).Register(router)
	(&httpx.CartHandler{Carts: carts, Checkout: co, Ledger: ledger}).Register(router)
	(&httpx.CatalogHandler{Ledger: ledger}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // close inbox -> flush & close writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}

func newLogger(env string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if env == "production" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return l
}
