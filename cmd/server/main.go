package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mstepanov/clothes_shop/internal/config"
	"github.com/mstepanov/clothes_shop/internal/es"
	"github.com/mstepanov/clothes_shop/internal/handlers"
	"github.com/mstepanov/clothes_shop/internal/handlers/cart"
	"github.com/mstepanov/clothes_shop/internal/handlers/order"
	"github.com/mstepanov/clothes_shop/internal/logging"
	"github.com/mstepanov/clothes_shop/internal/metrics"
	"github.com/mstepanov/clothes_shop/internal/middleware/auth"
	"github.com/mstepanov/clothes_shop/internal/middleware/csrf"
	loggingmw "github.com/mstepanov/clothes_shop/internal/middleware/logging"
	"github.com/mstepanov/clothes_shop/internal/mykafka"
	"github.com/mstepanov/clothes_shop/internal/service/token"
	httpserver "github.com/mstepanov/clothes_shop/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(context.Background(), configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod, err := mykafka.NewProducer(
		[]string{configuration.KAFKA_ADDRESS},
		[]string{"user_events", "cart_events", "order_events", "product_events"},
	)
	if err != nil {
		log.Fatalf("kafka producer error: %v", err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch error: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(csrf.Middleware(
		"/api/v1/register",
		"/api/v1/login",
		"/health/live",
		"/health/ready",
		"/metrics",
	))

	guard := &auth.Guard{Tokens: &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}}

	deps := httpserver.Deps{
		Guard:           guard,
		AuthHandler:     &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod},
		UserHandler:     &handlers.UserHandler{DB: db},
		ProductHandler:  &handlers.ProductHandler{DB: db, Producer: prod, ES: esClient, Index: "products"},
		CategoryHandler: &handlers.CategoryHandler{DB: db},
		ReviewHandler:   &handlers.ReviewHandler{DB: db},
		StockHandler:    &handlers.StockHandler{DB: db, Producer: prod, Metrics: m},
		SearchHandler:   &handlers.SearchHandler{ES: esClient, Index: "products"},
		CartHandler:     &cart.CartHandler{DB: db, Producer: prod},
		OrderHandler:    &order.OrderHandler{DB: db, Producer: prod, Metrics: m},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	} else {
		logger.Error("db handle error", "error", err)
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
