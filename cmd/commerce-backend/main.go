package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"commerce-backend/internal/config"
	"commerce-backend/internal/env"
	"commerce-backend/internal/infrastructure/repo"
	"commerce-backend/internal/infrastructure/tamara"
	"commerce-backend/internal/logger"
	"commerce-backend/internal/metrics"
	"commerce-backend/internal/server"
	"commerce-backend/internal/usecase"
)

func main() {
	env.Load(".env", ".env.local")
	envDefaults := config.EnvDefaults()

	envName := flag.String("env", envDefaults.Env, "")
	port := flag.Int("port", envDefaults.Port, "")
	databaseURL := flag.String("database-url", envDefaults.DatabaseURL, "")
	jwtSecret := flag.String("jwt-secret", envDefaults.JWTSecret, "")
	publicBaseURL := flag.String("public-base-url", envDefaults.PublicBaseURL, "")
	storefrontURL := flag.String("storefront-url", envDefaults.StorefrontURL, "")
	tamaraAPIURL := flag.String("tamara-api-url", envDefaults.TamaraAPIURL, "")
	flag.Parse()

	cfg := envDefaults
	cfg.Env = *envName
	cfg.Port = *port
	cfg.DatabaseURL = *databaseURL
	cfg.JWTSecret = *jwtSecret
	cfg.PublicBaseURL = *publicBaseURL
	cfg.StorefrontURL = *storefrontURL
	cfg.TamaraAPIURL = *tamaraAPIURL

	var orderRepo usecase.OrderRepo
	if cfg.DatabaseURL != "" {
		pg, err := repo.NewPostgresOrderRepo(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres init failed", map[string]any{"error": err.Error()})
		}
		orderRepo = pg
	} else {
		logger.Warn("no database configured, using in-memory order store", nil)
		orderRepo = repo.NewMemoryOrderRepo()
	}

	gateway := &tamara.Client{
		BaseURL:       cfg.TamaraAPIURL,
		APIKey:        cfg.TamaraAPIKey,
		PublicBaseURL: cfg.PublicBaseURL,
		StorefrontURL: cfg.StorefrontURL,
	}
	payments := &usecase.PaymentService{
		Repo:     orderRepo,
		Gateway:  gateway,
		Verifier: &tamara.WebhookVerifier{Secret: cfg.TamaraWebhookSecret},
	}
	orders := &usecase.OrderService{Repo: orderRepo}

	srv := server.New(cfg, orders, payments, usecase.LogNotifier{}, metrics.New("api"))
	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("listening", map[string]any{"port": cfg.Port, "env": cfg.Env})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", map[string]any{"error": err.Error()})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", map[string]any{"error": err.Error()})
	}
}
