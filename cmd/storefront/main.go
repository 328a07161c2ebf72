package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	activityapp "github.com/dwikikusuma/storefront/internal/activity/app"
	activitymem "github.com/dwikikusuma/storefront/internal/activity/infra/memory"
	activityredis "github.com/dwikikusuma/storefront/internal/activity/infra/redis"
	cartapp "github.com/dwikikusuma/storefront/internal/cart/app"
	cartmem "github.com/dwikikusuma/storefront/internal/cart/infra/memory"
	cartredis "github.com/dwikikusuma/storefront/internal/cart/infra/redis"
	catalogapp "github.com/dwikikusuma/storefront/internal/catalog/app"
	catalogmem "github.com/dwikikusuma/storefront/internal/catalog/infra/memory"
	checkoutapp "github.com/dwikikusuma/storefront/internal/checkout/app"
	"github.com/dwikikusuma/storefront/internal/gateway"
	"github.com/dwikikusuma/storefront/pkg/config"
	"github.com/dwikikusuma/storefront/pkg/logger"
	"github.com/dwikikusuma/storefront/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service:   "storefront",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: true,
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	var (
		cartStore  cartapp.CartStore
		eventStore activityapp.EventStore
	)
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		defer client.Close()
		cartStore = cartredis.NewCartStore(client)
		eventStore = activityredis.NewEventStore(client)
		log.Info("using redis stores", slog.String("addr", cfg.RedisAddr))
	} else {
		cartStore = cartmem.NewCartStore()
		eventStore = activitymem.NewEventStore()
		log.Info("REDIS_ADDR not set, using in-memory stores")
	}

	engine := cartapp.NewEngine(cartStore, log)
	catalogSvc := catalogapp.NewService(catalogmem.NewProductRepo(catalogmem.DefaultCatalog()))
	recorder := activityapp.NewRecorder(eventStore)
	checkoutSvc := checkoutapp.NewService()

	sessions := gateway.NewSessionHub()
	srv := gateway.NewServer(log, engine, catalogSvc, recorder, checkoutSvc, sessions)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := engine.Watch(gctx, sessions)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown requested")

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		return server.Shutdown(stopCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("exit with error", slog.Any("err", err))
	}
	log.Info("bye")
}
