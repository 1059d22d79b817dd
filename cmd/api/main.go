package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/storefront/internal/config"
	"github.com/dejobratic/storefront/internal/database"
	idempostgres "github.com/dejobratic/storefront/internal/idempotency/postgres"
	"github.com/dejobratic/storefront/internal/kafka"
	"github.com/dejobratic/storefront/internal/orders/adapters"
	httpadapter "github.com/dejobratic/storefront/internal/orders/adapters/http"
	ordersmemory "github.com/dejobratic/storefront/internal/orders/adapters/memory"
	ordersmongo "github.com/dejobratic/storefront/internal/orders/adapters/mongo"
	orderspostgres "github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	ordersstripe "github.com/dejobratic/storefront/internal/orders/adapters/stripe"
	ordersapp "github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	ordersmetrics "github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(telemetry.ParseLevel(cfg.Telemetry.LogLevel)).
		With("service", cfg.Service.Name, "version", cfg.Service.Version)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:      cfg.Service.Name,
		ServiceVersion:   cfg.Service.Version,
		Environment:      cfg.Service.Environment,
		OTLPEndpoint:     cfg.Telemetry.OTelEndpoint,
		EnableTracing:    cfg.Telemetry.EnableTracing,
		EnableMetrics:    cfg.Telemetry.EnableMetrics,
		EnablePrometheus: cfg.Telemetry.EnablePrometheus,
		SampleRate:       cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	var meter metric.Meter = noop.NewMeterProvider().Meter(cfg.Service.Name)
	if mp := tel.MeterProvider(); mp != nil {
		meter = mp.Meter(cfg.Service.Name)
	}

	pool, err := database.NewPool(ctx, database.PoolConfig{URL: cfg.Database.URL})
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create database metrics: %w", err)
	}
	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create kafka metrics: %w", err)
	}
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create order metrics: %w", err)
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	readiness := map[string]httpadapter.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return database.CheckHealth(ctx, pool) },
	}

	products, closeProducts, err := newProductStore(ctx, cfg, pool, readiness)
	if err != nil {
		return err
	}
	defer closeProducts()

	var events ports.EventBus = kafka.NewNoopEventBus(logger)
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			Username: cfg.Kafka.Username,
			Password: cfg.Kafka.Password,
		}, logger)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			producer.Close(closeCtx)
		}()
		events = producer
		readiness["kafka"] = producer.Ping
		logger.Info("publishing order events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	var payments ports.PaymentGateway
	if cfg.Stripe.Enabled() {
		gateway, err := ordersstripe.NewGateway(ordersstripe.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		})
		if err != nil {
			return fmt.Errorf("create stripe gateway: %w", err)
		}
		payments = gateway
	} else {
		logger.Warn("stripe is not configured, online checkout is disabled")
	}

	service := ordersapp.NewService(ordersapp.Dependencies{
		Orders:      adapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics),
		Carts:       adapters.NewObservableCartStore(orderspostgres.NewCartStore(pool), dbMetrics),
		Products:    adapters.NewObservableProductStore(products, dbMetrics),
		Payments:    payments,
		Events:      adapters.NewObservableEventBus(events, kafkaMetrics),
		Idempotency: idempostgres.NewStore(pool, cfg.Idempotency.TTL),
		Logger:      logger,
		Metrics:     orderMetrics,
		Policy: commands.OrderPolicy{
			ShippingFee:    cfg.Orders.ShippingFee,
			DeductOnCreate: cfg.Orders.StockDeduction == config.DeductOnCreate,
		},
		Checkout: ordersapp.CheckoutConfig{
			Currency:   cfg.Orders.Currency,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
		},
	})

	handler := httpadapter.NewRouter(httpadapter.RouterConfig{
		Handler:        httpadapter.NewHandler(service, logger),
		Metrics:        httpMetrics,
		Logger:         logger,
		Readiness:      readiness,
		MetricsPath:    cfg.HTTP.MetricsPath,
		MetricsHandler: tel.MetricsHandler(),
		ServiceName:    cfg.Service.Name,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			"port", cfg.HTTP.Port,
			"product_store", cfg.Orders.ProductStore,
			"stock_deduction", cfg.Orders.StockDeduction,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

// newProductStore picks the stock ledger backend. The returned func releases its connections.
func newProductStore(
	ctx context.Context,
	cfg *config.Config,
	pool *pgxpool.Pool,
	readiness map[string]httpadapter.ReadinessCheck,
) (ports.ProductStore, func(), error) {
	switch cfg.Orders.ProductStore {
	case config.ProductStoreMongo:
		client, err := ordersmongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		readiness["mongo"] = ordersmongo.Pinger{Client: client}.Ping

		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
		return ordersmongo.NewProductStore(client.Database(cfg.Mongo.Database)), closeFn, nil
	case config.ProductStoreMemory:
		return ordersmemory.NewProductStore(), func() {}, nil
	default:
		return orderspostgres.NewProductStore(pool), func() {}, nil
	}
}
