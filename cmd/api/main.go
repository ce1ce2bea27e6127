package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sanviii19/My-Shopping-App-sub000/internal/cart"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/checkout"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/config"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/httpx"
	kafkax "github.com/sanviii19/My-Shopping-App-sub000/internal/kafka"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/payment"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/postgres"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/redisx"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, log)
	pPlaced.Start(ctx)
	pAbandoned := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderAbandoned, 1024, log)
	pAbandoned.Start(ctx)
	pUpdated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentUpdated, 1024, log)
	pUpdated.Start(ctx)

	// Core wiring
	repo := &orders.Repo{DB: db}
	carts := &cart.Store{Redis: rdb}
	gateway := payment.NewClient(cfg.GatewayBaseURL, cfg.GatewayAppID, cfg.GatewaySecret, cfg.GatewayTimeout)
	if cfg.GatewayBaseURL == "" {
		log.Warn("payment gateway not configured, checkout runs in degraded mode")
	}

	svc := &checkout.Service{
		Store:          repo,
		Cart:           carts,
		Gateway:        gateway,
		Producer:       pPlaced,
		Log:            log,
		ServiceName:    cfg.ServiceName,
		GatewayTimeout: cfg.GatewayTimeout,
	}

	sweeper := &worker.Sweeper{
		Store:             repo,
		Gateway:           gateway,
		ProducerAbandoned: pAbandoned,
		ProducerUpdated:   pUpdated,
		Log:               log,
		ServiceName:       cfg.ServiceName + "-sweeper",
		Interval:          cfg.SweepInterval,
		StaleAfter:        cfg.StaleAfter,
		GatewayTimeout:    cfg.GatewayTimeout,
	}
	go sweeper.Run(ctx)

	// HTTP
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Checkout: svc, Repo: repo, Redis: rdb, Log: log}
	oh.Register(router)
	ch := &httpx.CartHandler{Cart: carts, Log: log}
	ch.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pPlaced.Close()
	pAbandoned.Close()
	pUpdated.Close()
	cancel()
	pPlaced.WaitClosed()
	pAbandoned.WaitClosed()
	pUpdated.WaitClosed()
}
