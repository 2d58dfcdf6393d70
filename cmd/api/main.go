package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atelier-checkout/internal/config"
	"atelier-checkout/internal/database"
	"atelier-checkout/internal/handler"
	"atelier-checkout/internal/notify"
	"atelier-checkout/internal/payment"
	"atelier-checkout/internal/repository"
	"atelier-checkout/internal/router"
	"atelier-checkout/internal/service"
	"atelier-checkout/internal/shipping"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting atelier checkout API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	// Load the shipping rate table
	calculator, err := newShippingCalculator(ctx, cfg.Shipping, logger)
	if err != nil {
		return err
	}

	// Initialize payment providers
	hosted := payment.NewHostedClient(cfg.Payment.Hosted.APIURL, cfg.Payment.Hosted.SecretKey, cfg.Payment.HTTPTimeout, logger)
	wallet := payment.NewWalletClient(cfg.Payment.Wallet.APIURL, cfg.Payment.Wallet.ClientID, cfg.Payment.Wallet.ClientSecret, cfg.Payment.HTTPTimeout, logger)
	verifier := payment.NewWebhookVerifier(cfg.Payment.Hosted.WebhookSecret, payment.DefaultTolerance)

	// Initialize email dispatcher
	var sender notify.Sender
	if cfg.Email.Enabled {
		sender = notify.NewHTTPSender(cfg.Email.APIURL, cfg.Email.APIKey, cfg.Email.HTTPTimeout)
	} else {
		logger.Info().Msg("email disabled, notifications will only be logged")
		sender = notify.NewLogSender(logger)
	}
	dispatcher := notify.NewDispatcher(sender, cfg.Email.From, logger)

	// Initialize services
	reconciler := service.NewReconciler(orderRepo, productRepo, dispatcher, logger)
	checkoutService := service.NewCheckoutService(orderRepo, calculator, hosted, wallet, verifier, reconciler, service.CheckoutOptions{
		NumberPrefix: cfg.Orders.NumberPrefix,
		SuccessURL:   cfg.Payment.Hosted.SuccessURL,
		CancelURL:    cfg.Payment.Hosted.CancelURL,
	}, logger)
	orderService := service.NewOrderService(orderRepo, dispatcher, cfg.Orders.PendingTTL, logger)
	inventoryService := service.NewInventoryService(productRepo, logger)

	// Initialize router
	mux := router.New(router.Handlers{
		Checkout:  handler.NewCheckoutHandler(checkoutService, logger),
		Webhook:   handler.NewWebhookHandler(checkoutService, logger),
		Shipping:  handler.NewShippingHandler(calculator, logger),
		Order:     handler.NewOrderHandler(orderService, logger),
		Inventory: handler.NewInventoryHandler(inventoryService, logger),
	}, router.Options{
		APIKey:        cfg.Auth.APIKey,
		JWTSecret:     cfg.Auth.JWTSecret,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	}, logger)

	// Expire orders left unpaid
	if cfg.Orders.SweepInterval > 0 {
		go runExpirySweeper(ctx, orderService, cfg.Orders.SweepInterval, logger)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Stop the sweeper before draining requests
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newShippingCalculator loads the rate table from S3 with local fallback, a
// local file, or the built-in default, in that order of preference.
func newShippingCalculator(ctx context.Context, cfg config.ShippingConfig, logger zerolog.Logger) (*shipping.Calculator, error) {
	fileLoader := shipping.NewFileLoader(logger)
	var loader shipping.Loader = fileLoader

	if cfg.S3.Enabled {
		s3Loader, err := shipping.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			loader = shipping.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, true, logger)
		}
	}

	table, err := shipping.LoadTable(ctx, loader, cfg.TablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping table: %w", err)
	}

	calculator, err := shipping.NewCalculator(table)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize shipping calculator: %w", err)
	}

	logger.Info().
		Int("methods", len(table.Methods)).
		Int("zones", len(table.Zones)).
		Msg("shipping table loaded")

	return calculator, nil
}

// runExpirySweeper cancels stale unpaid orders every interval until ctx ends.
func runExpirySweeper(ctx context.Context, orders service.OrderService, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := orders.ExpireStale(ctx); err != nil {
				logger.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}
