package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/clinicops/scheduler-api/internal/config"
	"github.com/clinicops/scheduler-api/internal/handler"
	appointmentHandler "github.com/clinicops/scheduler-api/internal/handler/appointment"
	"github.com/clinicops/scheduler-api/internal/middleware"
	"github.com/clinicops/scheduler-api/internal/repository/postgres"
	"github.com/clinicops/scheduler-api/internal/router"
	appointmentService "github.com/clinicops/scheduler-api/internal/service/appointment"
	scheduleService "github.com/clinicops/scheduler-api/internal/service/schedule"
	"github.com/clinicops/scheduler-api/pkg/auth"
	"github.com/clinicops/scheduler-api/pkg/logger"
	"github.com/clinicops/scheduler-api/pkg/messaging"
	redisBroker "github.com/clinicops/scheduler-api/pkg/messaging/redis"
	"github.com/clinicops/scheduler-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      parseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Log.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("scheduler", "api")

	appointmentRepo := postgres.NewAppointmentRepository(db, m)

	var broker messaging.Broker
	broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, appLogger.Zerolog())
	if err != nil {
		// The API stays up without the broker; events are simply not published.
		log.Warn().Err(err).Msg("redis unavailable, appointment events disabled")
		broker = nil
	} else {
		defer broker.Close()
	}

	appointmentSvc := appointmentService.NewService(
		appointmentRepo, cfg.Scheduling, broker, m, *appLogger.Zerolog())
	scheduleSvc := scheduleService.NewService(appointmentRepo, cfg.Scheduling)

	verifier := auth.NewTokenVerifier(cfg.JWT.Secret)
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	h := handler.NewHandler()
	appointmentH := appointmentHandler.NewHandler(appointmentSvc, scheduleSvc)

	r := router.NewRouter(authMiddleware, appointmentH, h, router.RouterConfig{
		RateLimit:      rate.Limit(cfg.Server.RateLimitRPS),
		RateBurst:      cfg.Server.RateLimitBurst,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSConfig:     middleware.DefaultCORSConfig(),
		MetricsPrefix:  "scheduler",
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func parseLevel(level string) logger.Level {
	switch level {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
