package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Mongo       MongoConfig
	Kafka       KafkaConfig
	Telemetry   TelemetryConfig
	Service     ServiceConfig
	Orders      OrdersConfig
	Stripe      StripeConfig
	Idempotency IdempotencyConfig
}

type HTTPConfig struct {
	Port          int
	MetricsPath   string
	ShutdownGrace time.Duration
}

type DatabaseConfig struct {
	URL            string
	AutoMigrate    bool
	MigrationsPath string
}

type MongoConfig struct {
	URI      string
	Database string
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
}

// Enabled reports whether events go to brokers instead of the log.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type TelemetryConfig struct {
	LogLevel         string
	OTelEndpoint     string
	EnableTracing    bool
	EnableMetrics    bool
	EnablePrometheus bool
	SampleRate       float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

// StockDeduction selects when an order takes stock out of the ledger.
type StockDeduction string

const (
	DeductOnConfirm StockDeduction = "confirm"
	DeductOnCreate  StockDeduction = "create"
)

// ProductStoreDriver selects the backend of the stock ledger.
type ProductStoreDriver string

const (
	ProductStorePostgres ProductStoreDriver = "postgres"
	ProductStoreMongo    ProductStoreDriver = "mongo"
	ProductStoreMemory   ProductStoreDriver = "memory"
)

type OrdersConfig struct {
	ShippingFee    decimal.Decimal
	Currency       string
	StockDeduction StockDeduction
	ProductStore   ProductStoreDriver
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Enabled reports whether hosted checkout is available.
func (s StripeConfig) Enabled() bool {
	return s.SecretKey != ""
}

type IdempotencyConfig struct {
	TTL time.Duration
}

const (
	defaultHTTPPort       = 8080
	defaultMetricsPath    = "/metrics"
	defaultShutdownGrace  = 15 * time.Second
	defaultMigrationsPath = "migrations"
	defaultAutoMigrate    = true
	defaultServiceName    = "storefront-api"
	defaultServiceVersion = "0.1.0"
	defaultEnvironment    = "development"
	defaultLogLevel       = "info"
	defaultOTelSampleRate = 1.0
	defaultMongoURI       = "mongodb://localhost:27017"
	defaultMongoDatabase  = "storefront"
	defaultKafkaTopic     = "orders"
	defaultShippingFee    = "100"
	defaultCurrency       = "egp"
	defaultSuccessURL     = "http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	defaultCancelURL      = "http://localhost:3000/cart"
	defaultIdempotencyTTL = 24 * time.Hour
)

// Load reads configuration from environment variables, applying defaults when needed.
// A .env file in the working directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	ordersCfg, err := loadOrdersConfig()
	if err != nil {
		return nil, fmt.Errorf("loading orders config: %w", err)
	}

	idemCfg, err := loadIdempotencyConfig()
	if err != nil {
		return nil, fmt.Errorf("loading idempotency config: %w", err)
	}

	stripeCfg := loadStripeConfig()
	if stripeCfg.Enabled() && stripeCfg.WebhookSecret == "" {
		return nil, errors.New("loading stripe config: STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	return &Config{
		HTTP:        httpCfg,
		Database:    loadDatabaseConfig(),
		Mongo:       loadMongoConfig(),
		Kafka:       loadKafkaConfig(),
		Telemetry:   telCfg,
		Service:     loadServiceConfig(),
		Orders:      ordersCfg,
		Stripe:      stripeCfg,
		Idempotency: idemCfg,
	}, nil
}

func loadHTTPConfig() (HTTPConfig, error) {
	port, err := getIntEnv("API_HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return HTTPConfig{}, err
	}

	graceSeconds, err := getIntEnv("API_SHUTDOWN_GRACE_SECONDS", int(defaultShutdownGrace/time.Second))
	if err != nil {
		return HTTPConfig{}, err
	}

	return HTTPConfig{
		Port:          port,
		MetricsPath:   getEnvOrDefault("API_METRICS_PATH", defaultMetricsPath),
		ShutdownGrace: time.Duration(graceSeconds) * time.Second,
	}, nil
}

func loadDatabaseConfig() DatabaseConfig {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	return DatabaseConfig{
		URL:            databaseURL,
		AutoMigrate:    getBoolEnv("AUTO_MIGRATE", defaultAutoMigrate),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}
}

func loadMongoConfig() MongoConfig {
	return MongoConfig{
		URI:      getEnvOrDefault("MONGO_URI", defaultMongoURI),
		Database: getEnvOrDefault("MONGO_DATABASE", defaultMongoDatabase),
	}
}

func loadKafkaConfig() KafkaConfig {
	var brokers []string
	if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok && value != "" {
		for _, broker := range strings.Split(value, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	return KafkaConfig{
		Brokers:  brokers,
		Topic:    getEnvOrDefault("KAFKA_TOPIC", defaultKafkaTopic),
		Username: os.Getenv("KAFKA_USERNAME"),
		Password: os.Getenv("KAFKA_PASSWORD"),
	}
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:         getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		OTelEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		EnableTracing:    getBoolEnv("OTEL_ENABLE_TRACING", true),
		EnableMetrics:    getBoolEnv("OTEL_ENABLE_METRICS", true),
		EnablePrometheus: getBoolEnv("PROMETHEUS_ENABLED", true),
		SampleRate:       sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func loadOrdersConfig() (OrdersConfig, error) {
	fee, err := decimal.NewFromString(getEnvOrDefault("ORDER_SHIPPING_FEE", defaultShippingFee))
	if err != nil {
		return OrdersConfig{}, fmt.Errorf("invalid ORDER_SHIPPING_FEE: %w", err)
	}
	if fee.IsNegative() {
		return OrdersConfig{}, errors.New("invalid ORDER_SHIPPING_FEE: must not be negative")
	}

	deduction := StockDeduction(strings.ToLower(getEnvOrDefault("ORDER_STOCK_DEDUCTION", string(DeductOnConfirm))))
	switch deduction {
	case DeductOnConfirm, DeductOnCreate:
	default:
		return OrdersConfig{}, fmt.Errorf("invalid ORDER_STOCK_DEDUCTION %q: want confirm or create", deduction)
	}

	driver := ProductStoreDriver(strings.ToLower(getEnvOrDefault("PRODUCT_STORE", string(ProductStorePostgres))))
	switch driver {
	case ProductStorePostgres, ProductStoreMongo, ProductStoreMemory:
	default:
		return OrdersConfig{}, fmt.Errorf("invalid PRODUCT_STORE %q: want postgres, mongo or memory", driver)
	}

	return OrdersConfig{
		ShippingFee:    fee,
		Currency:       strings.ToLower(getEnvOrDefault("ORDER_CURRENCY", defaultCurrency)),
		StockDeduction: deduction,
		ProductStore:   driver,
	}, nil
}

func loadStripeConfig() StripeConfig {
	return StripeConfig{
		SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SuccessURL:    getEnvOrDefault("STRIPE_SUCCESS_URL", defaultSuccessURL),
		CancelURL:     getEnvOrDefault("STRIPE_CANCEL_URL", defaultCancelURL),
	}
}

func loadIdempotencyConfig() (IdempotencyConfig, error) {
	ttl := defaultIdempotencyTTL
	if value, ok := os.LookupEnv("IDEMPOTENCY_TTL"); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return IdempotencyConfig{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		ttl = parsed
	}
	return IdempotencyConfig{TTL: ttl}, nil
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "storefront")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}
