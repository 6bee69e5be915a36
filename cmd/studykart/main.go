package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studykart/studykart/internal/cart"
	"github.com/studykart/studykart/internal/checkout"
	"github.com/studykart/studykart/internal/config"
	"github.com/studykart/studykart/internal/discount"
	"github.com/studykart/studykart/internal/port"
	"github.com/studykart/studykart/internal/pricing"
	"github.com/studykart/studykart/internal/provider"
	"github.com/studykart/studykart/internal/repository"
	"github.com/studykart/studykart/internal/server"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "studykart",
		Short: "Study materials storefront API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("newLogger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	policy := discount.NewPolicy(cfg.Discount.Rates())
	reconciler := pricing.NewReconciler(policy)

	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pool.Ping: %w", err)
	}

	carts := repository.NewCart(pool)
	orders := repository.NewOrder(pool)
	gateways := repository.NewGateway(pool)

	manager := cart.NewManager(policy, carts)

	providers := make(map[string]port.PaymentProvider)
	if cfg.Stripe.SecretKey != "" {
		providers["stripe"] = provider.NewStripe(cfg.Stripe.BaseURL, cfg.Stripe.SecretKey, nil)
	}

	var paypal *provider.PayPal
	if cfg.PayPal.ClientID != "" {
		paypal = provider.NewPayPal(cfg.PayPal.BaseURL, cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, nil)
		providers["paypal"] = paypal
	}

	timeout, err := cfg.Checkout.Timeout()
	if err != nil {
		return fmt.Errorf("checkout timeout: %w", err)
	}

	initiator := checkout.NewInitiator(manager, reconciler, orders, gateways, providers, timeout, logger)
	srv := server.New(manager, reconciler, initiator, gateways, paypal, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("httpServer.ListenAndServe: %w", err)
	case <-ctx.Done():
	}

	shutdown, err := cfg.Server.Shutdown()
	if err != nil {
		shutdown = 10 * time.Second
	}

	logger.Info("shutting down", zap.Duration("grace", shutdown))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpServer.Shutdown: %w", err)
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("zapcore.ParseLevel: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}
