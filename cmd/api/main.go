package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/vendorlane/api/internal/handlers"
	"github.com/vendorlane/api/internal/platform/config"
	"github.com/vendorlane/api/internal/platform/notify"
	"github.com/vendorlane/api/internal/platform/observability"
	"github.com/vendorlane/api/internal/repositories/sqlite"
	"github.com/vendorlane/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()
	if err := provider.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}

	clientRepo, err := sqlite.NewClientRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise client repository", zap.Error(err))
	}
	cartRepo, err := sqlite.NewCartRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	orderRepo, err := sqlite.NewOrderRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	invoiceRepo, err := sqlite.NewInvoiceRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise invoice repository", zap.Error(err))
	}
	catalogRepo, err := sqlite.NewCatalogRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}
	notificationRepo, err := sqlite.NewNotificationRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise notification repository", zap.Error(err))
	}
	counterRepo, err := sqlite.NewCounterRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}

	serviceLogger := func(named *zap.Logger) func(context.Context, string, map[string]any) {
		return func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			named.Debug("service log", zFields...)
		}
	}

	counterService, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: counterRepo,
		Clock:      time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise counter service", zap.Error(err))
	}

	pricingService, err := services.NewPricingService(services.PricingServiceDeps{
		Catalog: catalogRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing service", zap.Error(err))
	}

	var realtime services.RealTimeNotifier = services.NoopRealTimeNotifier{}
	var pubsubClient *pubsub.Client
	if cfg.Notifications.ProjectID != "" && cfg.Notifications.TopicID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Notifications.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		notifier, err := notify.NewPubSubNotifier(pubsubClient.Topic(cfg.Notifications.TopicID))
		if err != nil {
			logger.Fatal("failed to initialise pubsub notifier", zap.Error(err))
		}
		realtime = notifier
	}

	notificationService, err := services.NewNotificationService(services.NotificationServiceDeps{
		Repository: notificationRepo,
		RealTime:   realtime,
		Messenger:  notify.NewLogMessenger(logger.Named("messenger")),
		Clock:      time.Now,
		MaxRetries: cfg.Notifications.MaxRetries,
		Logger:     serviceLogger(logger.Named("notifications")),
	})
	if err != nil {
		logger.Fatal("failed to initialise notification service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository: cartRepo,
		Clients:    clientRepo,
		Pricing:    pricingService,
		Counters:   counterService,
		UnitOfWork: provider,
		Clock:      time.Now,
		Logger:     serviceLogger(logger.Named("carts")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Repository:      orderRepo,
		Carts:           cartRepo,
		Clients:         clientRepo,
		Catalog:         catalogRepo,
		Pricing:         pricingService,
		Counters:        counterService,
		Notifications:   notificationService,
		UnitOfWork:      provider,
		Clock:           time.Now,
		DefaultCurrency: cfg.Commerce.DefaultCurrency,
		Logger:          serviceLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	invoiceService, err := services.NewInvoiceService(services.InvoiceServiceDeps{
		Repository:      invoiceRepo,
		Carts:           cartRepo,
		Clients:         clientRepo,
		Orders:          orderService,
		Counters:        counterService,
		Notifications:   notificationService,
		UnitOfWork:      provider,
		Clock:           time.Now,
		QuoteValidDays:  cfg.Commerce.QuoteValidDays,
		DefaultCurrency: cfg.Commerce.DefaultCurrency,
		Logger:          serviceLogger(logger.Named("invoices")),
	})
	if err != nil {
		logger.Fatal("failed to initialise invoice service", zap.Error(err))
	}

	vendorService, err := services.NewVendorService(services.VendorServiceDeps{
		Catalog:       catalogRepo,
		Notifications: notificationService,
		UnitOfWork:    provider,
		Clock:         time.Now,
		Logger:        serviceLogger(logger.Named("vendors")),
	})
	if err != nil {
		logger.Fatal("failed to initialise vendor service", zap.Error(err))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(provider)),
		handlers.WithCartRoutes(handlers.NewCartHandlers(cartService).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(orderService).Routes),
		handlers.WithInvoiceRoutes(handlers.NewInvoiceHandlers(invoiceService).Routes),
		handlers.WithVendorRoutes(handlers.NewVendorHandlers(vendorService).Routes),
		handlers.WithNotificationRoutes(handlers.NewNotificationHandlers(notificationService).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Background redelivery loop for pending notifications.
	redeliverCtx, redeliverCancel := context.WithCancel(ctx)
	redeliverTicker := time.NewTicker(cfg.Notifications.RedeliverInterval)
	var redeliverWG sync.WaitGroup
	redeliverWG.Add(1)
	redeliverLogger := logger.Named("redelivery")
	go func() {
		defer redeliverWG.Done()
		for {
			select {
			case <-redeliverCtx.Done():
				return
			case <-redeliverTicker.C:
				report, err := notificationService.DeliverPending(redeliverCtx, cfg.Notifications.RedeliverBatchSize)
				if err != nil {
					redeliverLogger.Warn("redelivery sweep failed", zap.Error(err))
					continue
				}
				if report.Attempted > 0 {
					redeliverLogger.Info("redelivery sweep completed",
						zap.Int("attempted", report.Attempted),
						zap.Int("sent", report.Sent),
						zap.Int("failed", report.Failed),
					)
				}
			}
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("vendorlane api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	redeliverTicker.Stop()
	redeliverCancel()
	redeliverWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
