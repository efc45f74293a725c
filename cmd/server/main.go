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

	"github.com/ValeraFCDM/BookShop/internal/config"
	"github.com/ValeraFCDM/BookShop/internal/es"
	"github.com/ValeraFCDM/BookShop/internal/handlers"
	"github.com/ValeraFCDM/BookShop/internal/handlers/cart"
	"github.com/ValeraFCDM/BookShop/internal/handlers/order"
	"github.com/ValeraFCDM/BookShop/internal/logging"
	"github.com/ValeraFCDM/BookShop/internal/mykafka"
	"github.com/ValeraFCDM/BookShop/internal/service/token"
	httpserver "github.com/ValeraFCDM/BookShop/internal/transport/http"
	loggingmw "github.com/ValeraFCDM/BookShop/pkg/middleware/logging"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod, err := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	if err != nil {
		log.Printf("kafka disabled: %v", err)
		prod = nil
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Printf("elasticsearch disabled, falling back to database search: %v", err)
		esClient = nil
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:             db,
		AuthHandler:    &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod},
		BookHandler:    &handlers.BookHandler{DB: db, Producer: prod, ES: esClient, Index: configuration.ES_INDEX, JWTSecret: jwtSecret},
		CatalogHandler: &handlers.CatalogHandler{DB: db},
		ReviewHandler:  &handlers.ReviewHandler{DB: db, Producer: prod, JWTSecret: jwtSecret},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, DB: db, Index: configuration.ES_INDEX},
		CartHandler:    &cart.CartHandler{DB: db, Producer: prod, JWTSecret: jwtSecret},
		OrderHandler:   &order.OrderHandler{DB: db, Producer: prod, JWTSecret: jwtSecret},
		ServiceHandler: &token.TokenService{DB: db, RefreshSecret: refreshSecret, JWTSecret: jwtSecret},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.SERVER_ADDRESS,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
