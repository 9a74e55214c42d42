package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"order-saga/config"
	"order-saga/internal/api"
	"order-saga/internal/bus"
	"order-saga/internal/redisclient"
	"order-saga/internal/service"
	"order-saga/internal/storage"
	"order-saga/internal/util"
	"order-saga/internal/worker"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order saga service")

	tp, err := util.InitTracer("order-saga", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	var (
		eventBus bus.Bus
		products storage.ProductStore
		accounts storage.AccountStore
		orders   storage.OrderStore
		notifier service.Notifier
	)

	if cfg.Bus.Driver == "memory" {
		// Self-contained mode: everything in-process, no external services.
		eventBus = bus.NewMemoryBus(time.Second)
		mem := storage.NewMemoryStore()
		products, accounts, orders = mem, mem, mem
		notifier = service.LogNotifier{}
		log.Println("Running with in-memory bus and stores")
	} else {
		db, err := storage.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Database connected")

		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")

		eventBus = bus.NewKafkaBus(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		products, accounts, orders = db, db, db
		notifier = redisClient
	}
	defer eventBus.Close()

	bus.BindSagaTopology(eventBus)
	publisher := bus.NewEventPublisher(eventBus)

	inventoryService := service.NewInventoryService(products, publisher)
	accountService := service.NewAccountService(accounts, publisher)
	orderService := service.NewOrderService(orders, products, accounts, publisher, notifier)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	inventoryWorker := worker.NewInventoryWorker(eventBus, inventoryService, cfg.Bus.Concurrency)
	balanceWorker := worker.NewBalanceWorker(eventBus, accountService, cfg.Bus.Concurrency)
	orderWorker := worker.NewOrderWorker(eventBus, orderService, cfg.Bus.Concurrency)

	go func() {
		if err := inventoryWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Inventory worker error: %v", err)
		}
	}()
	go func() {
		if err := balanceWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Balance worker error: %v", err)
		}
	}()
	go func() {
		if err := orderWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Order worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, products, accounts)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()

	log.Println("Server exited")
}
