// Package main Storytime Billing API
//
// @title           Storytime Billing API
// @version         1.0
// @description     Subscription tiers, usage metering and Stripe billing for bedtime stories.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/magabrotheeeer/storytime-billing/docs"
	"github.com/magabrotheeeer/storytime-billing/internal/app/storytime"
	"github.com/magabrotheeeer/storytime-billing/internal/config"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/logger"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, os.Stdout)

	log.Info("starting storytime-billing", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := storytime.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("storytime-billing stopped gracefully")
}
