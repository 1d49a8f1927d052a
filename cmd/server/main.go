package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexypass/nexypass-backend/internal/api"
	"github.com/nexypass/nexypass-backend/internal/config"
	"github.com/nexypass/nexypass-backend/internal/connectivity"
	"github.com/nexypass/nexypass-backend/internal/handler"
	"github.com/nexypass/nexypass-backend/internal/infrastructure/kafka"
	redisinfra "github.com/nexypass/nexypass-backend/internal/infrastructure/redis"
	"github.com/nexypass/nexypass-backend/internal/observability"
	"github.com/nexypass/nexypass-backend/internal/remote"
	"github.com/nexypass/nexypass-backend/internal/repository"
	service "github.com/nexypass/nexypass-backend/internal/services"
	"github.com/nexypass/nexypass-backend/internal/store"
	"github.com/nexypass/nexypass-backend/internal/syncer"

	_ "github.com/lib/pq"
)

func main() {
	shutdownTracing := observability.Setup("nexypass-backend")
	defer shutdownTracing(context.Background())

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to open Postgres: %v", err)
	}
	defer db.Close()
	backend := remote.NewPostgres(db)

	redisClient := connectRedis(cfg.RedisAddr)

	var kv store.KV
	if cfg.StoreBackend == "redis" && redisClient != nil {
		kv = redisinfra.NewKV(redisClient)
	} else {
		fileKV, err := store.NewFileKV(cfg.StoreDir)
		if err != nil {
			log.Fatalf("Failed to open record store: %v", err)
		}
		kv = fileKV
	}
	recordStore := store.New(kv, cfg.StorePrefix)

	monitor := connectivity.NewMonitor(backend.Probe, cfg.ProbeInterval, cfg.ProbeTimeout)

	users := repository.NewUsers(recordStore, backend, monitor)
	products := repository.NewProducts(recordStore, backend, monitor)
	stock := repository.NewStockItems(recordStore, backend, monitor)
	orders := repository.NewOrders(recordStore, backend, monitor)
	txns := repository.NewTransactions(recordStore, backend, monitor)
	recharges := repository.NewRechargeRequests(recordStore, backend, monitor)

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	scheduler := syncer.NewScheduler(recordStore, backend, monitor, producer, cfg.SyncInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx)
	go scheduler.Start(ctx)

	svc := service.NewStorefront(users, products, stock, orders, txns, recharges,
		redisClient, producer, cfg.JWTSecret, cfg.AdminUsername, cfg.AdminPasswordHash)

	h := handler.NewHandler(svc, scheduler, monitor)
	router := api.SetupRouter(h, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	slog.Info("server stopped")
}

func connectRedis(addr string) (client redisinfra.RedisClient) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("redis unavailable, session cache disabled", "addr", addr)
			client = nil
		}
	}()
	return redisinfra.NewClient(addr)
}
