package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/xmbakery/bakeshop/internal/deliveries"
	"github.com/xmbakery/bakeshop/internal/events"
	"github.com/xmbakery/bakeshop/internal/orders"
	"github.com/xmbakery/bakeshop/internal/products"
	"github.com/xmbakery/bakeshop/internal/reports"
	"github.com/xmbakery/bakeshop/internal/store"
	"github.com/xmbakery/bakeshop/internal/ws"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(level)
	}

	cfg := store.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "bakeshop"),
		Password: getEnv("DB_PASSWORD", "bakeshop"),
		Name:     getEnv("DB_NAME", "xm_bakery"),
	}
	port := getEnv("PORT", "5000")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "")
	redisAddr := getEnv("REDIS_ADDR", "")

	db, err := store.Open(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := store.CreateTables(db); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	orderService := orders.NewService(db, logger)
	orderHandler := orders.NewHandler(orderService, logger)
	productHandler := products.NewHandler(db, logger)
	deliveryHandler := deliveries.NewHandler(db, logger)
	reportService := reports.NewService(db, logger)
	reportHandler := reports.NewHandler(reportService, logger)

	hub := ws.NewHub(logger)
	go hub.Run()
	orderHandler.SetBroadcaster(hub)
	deliveryHandler.SetBroadcaster(hub)

	if kafkaBrokers != "" {
		producer, err := events.NewKafkaProducer(kafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		orderHandler.SetPublisher(producer)
		logger.WithField("brokers", kafkaBrokers).Info("Kafka producer configured")
	} else {
		logger.Info("Kafka brokers not configured - order events disabled")
	}

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		ranking := reports.NewRedisRanking(client, "bakeshop:bestsellers")
		orderHandler.SetRanking(ranking)
		reportHandler.SetRanking(ranking)
		logger.WithField("addr", redisAddr).Info("Redis ranking configured")
	} else {
		logger.Info("Redis not configured - bestseller ranking disabled")
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck(db)).Methods("GET")

	router.HandleFunc("/orders", orderHandler.PlaceOrder).Methods("POST")
	router.HandleFunc("/orders", orderHandler.ListOrders).Methods("GET")
	router.HandleFunc("/orders/{id}", orderHandler.GetOrder).Methods("GET")
	router.HandleFunc("/orders/{id}/status", orderHandler.UpdateStatus).Methods("PUT")

	router.HandleFunc("/products", productHandler.Create).Methods("POST")
	router.HandleFunc("/products", productHandler.List).Methods("GET")
	router.HandleFunc("/products/{id}", productHandler.Get).Methods("GET")
	router.HandleFunc("/products/{id}", productHandler.Update).Methods("PUT")
	router.HandleFunc("/products/{id}", productHandler.Delete).Methods("DELETE")

	router.HandleFunc("/deliveries/{orderId}", deliveryHandler.Get).Methods("GET")
	router.HandleFunc("/deliveries/{orderId}", deliveryHandler.Update).Methods("PUT")

	router.HandleFunc("/reports/sales", reportHandler.Sales).Methods("GET")
	router.HandleFunc("/reports/bestsellers", reportHandler.Bestsellers).Methods("GET")

	router.HandleFunc("/ws", hub.HandleWebSocket)

	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(logger))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting bakeshop service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func healthCheck(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","error":"database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}
}

func requestIDMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r)
		})
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote":     r.RemoteAddr,
				"request_id": w.Header().Get("X-Request-ID"),
				"duration":   time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
