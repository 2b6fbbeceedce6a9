// README: Entry point; loads config, wires services, starts the event consumer and HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chauffeur/internal/cache"
	"chauffeur/internal/config"
	httptransport "chauffeur/internal/http"
	"chauffeur/internal/http/handlers"
	"chauffeur/internal/infra"
	"chauffeur/internal/logging"
	"chauffeur/internal/modules/audit"
	"chauffeur/internal/modules/pricing"
	"chauffeur/internal/modules/ride"
	"chauffeur/internal/mq"
	"chauffeur/internal/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("postgres init", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	amqpConn, err := infra.NewAMQP(ctx, cfg.AMQP.URL, cfg.AMQP.Queue, log)
	if err != nil {
		log.Error("rabbitmq init", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	router, err := newRoutingClient(cfg.Routing)
	if err != nil {
		log.Error("routing init", "error", err)
		os.Exit(1)
	}

	rideStore := ride.NewPgStore(dbPool)
	auditSink := audit.NewStore(dbPool)
	rateStore := pricing.NewPgRateStore(dbPool)

	publisher := mq.NewPublisher(amqpConn.Channel, cfg.AMQP.Queue)
	dispatchSvc := ride.NewService(rideStore, auditSink, publisher, log)
	pricingSvc := pricing.NewService(rideStore, rateStore, router, auditSink, log)

	rideCache := cache.NewRideCache(redisClient, rideStore)
	consumer := mq.NewConsumer(amqpConn.Channel, cfg.AMQP.Queue, log, pricingSvc, rideCache)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("mutation consumer stopped", "error", err)
		}
	}()

	verifier := infra.NewJWTVerifier(cfg.Auth.JWTSecret)
	rideHandler := handlers.NewRideHandler(dispatchSvc, rideCache)
	engine := httptransport.NewRouter(rideHandler, verifier, log)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: engine}
	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
}

func newRoutingClient(cfg config.RoutingConfig) (routing.Client, error) {
	switch cfg.Provider {
	case "google":
		return routing.NewGoogleClient(cfg.GoogleKey)
	default:
		return routing.NewOSRMClient(cfg.OSRMBase, cfg.Timeout), nil
	}
}
