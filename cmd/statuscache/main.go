package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sanviii19/My-Shopping-App-sub000/internal/config"
	kafkax "github.com/sanviii19/My-Shopping-App-sub000/internal/kafka"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/redisx"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/statuscache"
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &statuscache.Service{Redis: rdb, Log: log}

	group := getenv("STATUSCACHE_GROUP", "statuscache-svc")
	workers := mustAtoi(os.Getenv("STATUSCACHE_WORKERS"), "4")

	topics := []string{orders.TopicOrderPlaced, orders.TopicOrderAbandoned, orders.TopicPaymentUpdated}
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers, log)
		go func(topic string) {
			log.Info("consumer started",
				zap.String("group", group), zap.String("topic", topic), zap.Int("workers", workers))
			if err := cons.Start(ctx, svc.HandleEvent); err != nil {
				log.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}(topic)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumers")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
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
