package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		ServiceName:    "storefront-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		EnableTracing:  true,
		EnableMetrics:  true,
		SampleRate:     1.0,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: ErrMissingServiceName},
		{name: "missing service version", mutate: func(c *Config) { c.ServiceVersion = "" }, wantErr: ErrMissingServiceVersion},
		{name: "negative sample rate", mutate: func(c *Config) { c.SampleRate = -0.1 }, wantErr: ErrInvalidSampleRate},
		{name: "sample rate above one", mutate: func(c *Config) { c.SampleRate = 1.5 }, wantErr: ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v wrapped in ErrInvalidConfig, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("with injected exporters", func(t *testing.T) {
		tel, err := Initialize(ctx, testConfig(),
			WithTraceExporter(NewNoopTraceExporter()),
			WithMetricExporter(NewNoopMetricExporter()),
		)
		if err != nil {
			t.Fatalf("Initialize() failed: %v", err)
		}
		t.Cleanup(func() { _ = tel.Shutdown(ctx) })

		if tel.TracerProvider() == nil || tel.MeterProvider() == nil {
			t.Fatal("expected both providers to be set")
		}

		ctx, span := StartSpan(ctx, "test-span")
		defer span.End()
		if TraceID(ctx) == "" || SpanID(ctx) == "" {
			t.Error("expected span context to carry trace and span ids")
		}
	})

	t.Run("without endpoint keeps providers in process", func(t *testing.T) {
		tel, err := Initialize(ctx, testConfig())
		if err != nil {
			t.Fatalf("Initialize() failed: %v", err)
		}

		if tel.TracerProvider() == nil || tel.MeterProvider() == nil {
			t.Fatal("expected both providers to be set")
		}
		if len(tel.shutdowns) != 2 {
			t.Errorf("expected 2 shutdown hooks, got %d", len(tel.shutdowns))
		}
		if err := tel.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() failed: %v", err)
		}
		if err := tel.Shutdown(ctx); err != nil {
			t.Errorf("second Shutdown() failed: %v", err)
		}
	})

	t.Run("disabled signals", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableTracing = false
		cfg.EnableMetrics = false

		tel, err := Initialize(ctx, cfg)
		if err != nil {
			t.Fatalf("Initialize() failed: %v", err)
		}
		if tel.TracerProvider() != nil || tel.MeterProvider() != nil {
			t.Error("expected no providers")
		}
		if err := tel.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() failed: %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.ServiceName = ""
		if _, err := Initialize(ctx, cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestMetricsHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("serves recorded instruments", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnablePrometheus = true

		tel, err := Initialize(ctx, cfg)
		if err != nil {
			t.Fatalf("Initialize() failed: %v", err)
		}
		t.Cleanup(func() { _ = tel.Shutdown(ctx) })

		counter, err := tel.MeterProvider().Meter("test").Int64Counter("orders_created_total")
		if err != nil {
			t.Fatalf("failed to create counter: %v", err)
		}
		counter.Add(ctx, 3)

		rec := httptest.NewRecorder()
		tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), "orders_created") {
			t.Errorf("expected counter in scrape output, got:\n%s", body)
		}
	})

	t.Run("not found when disabled", func(t *testing.T) {
		tel, err := Initialize(ctx, testConfig())
		if err != nil {
			t.Fatalf("Initialize() failed: %v", err)
		}
		t.Cleanup(func() { _ = tel.Shutdown(ctx) })

		rec := httptest.NewRecorder()
		tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 0.5, want: "ParentBased"},
	}

	for _, tt := range tests {
		got := createSampler(tt.rate).Description()
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("createSampler(%v) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}
