// Command demo runs the cache-stampede engine behind an HTTP server backed
// by a deliberately slow in-memory product repository, so the five
// strategies' behavior under concurrent load is directly observable.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cache "github.com/Hossein-Roshandel/stampedeguard"
	"github.com/Hossein-Roshandel/stampedeguard/internal/httpapi"
	"github.com/Hossein-Roshandel/stampedeguard/internal/product"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer log.Sync()

	cfg := cache.LoadConfigFromEnv("")

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	engine, err := cache.NewEngine[product.Product](rdb, cfg, log)
	if err != nil {
		log.Fatal("failed to build cache engine", zap.Error(err))
	}
	defer engine.Close()

	latency := 150 * time.Millisecond
	repo := product.NewInMemoryRepository(latency)
	seedDemoCatalog(repo)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	httpapi.NewServer(engine, repo, log).Register(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("starting demo server", zap.String("addr", srv.Addr), zap.Duration("simulated_repository_latency", latency))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func seedDemoCatalog(repo *product.InMemoryRepository) {
	ctx := context.Background()
	catalog := []product.Product{
		{ID: "1", Name: "Mechanical Keyboard", PriceCents: 8999},
		{ID: "2", Name: "USB-C Hub", PriceCents: 3499},
		{ID: "3", Name: "Standing Desk", PriceCents: 42999},
	}
	for _, p := range catalog {
		_ = repo.Upsert(ctx, p)
	}
}
