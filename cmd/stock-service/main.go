package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stockflow/stockflow-backend/internal/stock/consumers"
	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/internal/stock/events"
	"github.com/stockflow/stockflow-backend/internal/stock/handler"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(db)
	consumptionRepo := repository.NewConsumptionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Initialize services
	stockService := service.NewStockService(itemRepo, publisher, log)
	consumptionService := service.NewConsumptionService(consumptionRepo, publisher, log)
	planningService := service.NewPlanningService(orderRepo, itemRepo, cfg.Stock.OverageFactor, log)
	sessionService := service.NewSessionService(sessionRepo, publisher, domain.DiscrepancyThresholds{
		AbsoluteKg: cfg.Stock.DiscrepancyAbsoluteKg,
		Relative:   cfg.Stock.DiscrepancyRelative,
	}, log)

	// Initialize handlers
	itemHandler := handler.NewItemHandler(stockService, log)
	consumptionHandler := handler.NewConsumptionHandler(consumptionService, log)
	planningHandler := handler.NewPlanningHandler(planningService, log)
	sessionHandler := handler.NewSessionHandler(sessionService, log)

	// Start order event consumer
	orderConsumer, err := consumers.NewOrderEventConsumer(rmq, orderRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create order event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orderConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start order event consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.ActorMiddleware) // Extract acting user from headers
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-User-Name", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "stock-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/stock", func(r chi.Router) {
		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Receive)
			r.Get("/{id}", itemHandler.Get)
			r.Get("/{id}/history", itemHandler.History)
			r.Post("/{id}/move", itemHandler.Move)
			r.Post("/{id}/split", itemHandler.Split)
			r.Post("/{id}/block", itemHandler.Block)
			r.Post("/{id}/unblock", itemHandler.Unblock)
			r.Post("/{id}/missing", itemHandler.MarkMissing)
			r.Post("/{id}/found", itemHandler.MarkFound)
		})

		// Consumption routes
		r.Route("/consumptions", func(r chi.Router) {
			r.Post("/", consumptionHandler.Consume)
			r.Get("/{id}", consumptionHandler.Get)
			r.Post("/{id}/annul", consumptionHandler.Annul)
		})
		r.Get("/batches/{batchID}/consumptions", consumptionHandler.ListByBatch)

		// Planning routes
		r.Get("/planning/reservations", planningHandler.Reservations)
		r.Get("/planning/availability", planningHandler.Availability)

		// Inventory session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.ListOngoing)
			r.Post("/", sessionHandler.Create)
			r.Get("/{id}", sessionHandler.Get)
			r.Post("/{id}/scans", sessionHandler.Scan)
			r.Post("/{id}/locations/{code}/finish", sessionHandler.FinishLocation)
			r.Post("/{id}/locations/{code}/reopen", sessionHandler.ReopenLocation)
			r.Post("/{id}/complete", sessionHandler.Complete)
			r.Get("/{id}/report", sessionHandler.Report)
			r.Post("/{id}/adjustments", sessionHandler.ApplyAdjustments)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
