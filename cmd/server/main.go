package main

import (
	"coachshare/backend/internal/api"
	"coachshare/backend/internal/bootstrap"
	"coachshare/backend/internal/config"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// @title CoachShare API
// @version 1.0
// @description Coaches publish regimens, athletes log workouts and share them back.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	inj := bootstrap.BuildContainer(".")

	// --- Configuration ---
	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer func() { _ = log.Sync() }()
	log.Info("starting CoachShare server", zap.String("database_driver", cfg.Database.Driver))

	// --- Services ---
	services, err := do.Invoke[api.Services](inj)
	if err != nil {
		log.Fatal("could not initialize services", zap.Error(err))
	}

	// --- Initialize Gin Engine ---
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := api.RegisterValidators(); err != nil {
		log.Fatal("register validators", zap.Error(err))
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))

	// --- Setup Routes ---
	api.SetupRoutes(router, cfg.JWT, services)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := inj.Shutdown(); err != nil {
		log.Error("release dependencies", zap.Error(err))
	}

	log.Info("server exiting")
}
