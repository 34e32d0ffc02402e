package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"GOOGLE_CLOUD_PROJECT": "demo-project",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("unexpected port %q", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "demo-project" {
		t.Fatalf("expected firestore project fallback, got %q", cfg.Firestore.ProjectID)
	}
	if cfg.Firebase.ProjectID != "demo-project" {
		t.Fatalf("expected firebase project fallback, got %q", cfg.Firebase.ProjectID)
	}
	if cfg.Pricing.MaxMonetaryAmount != 1_000_000 {
		t.Fatalf("unexpected sanity ceiling %v", cfg.Pricing.MaxMonetaryAmount)
	}
	if cfg.Pricing.DefaultCurrency != "USD" {
		t.Fatalf("unexpected default currency %q", cfg.Pricing.DefaultCurrency)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" || cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("unexpected idempotency defaults %+v", cfg.Idempotency)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID":        "store-prod",
			"FIREBASE_PROJECT_ID":         "auth-prod",
			"PORT":                        "9090",
			"PRICING_MAX_MONETARY_AMOUNT": "250000",
			"PRICING_DEFAULT_CURRENCY":    "EUR",
			"SERVER_READ_TIMEOUT":         "5s",
			"PUBSUB_ORDER_TOPIC":          "order.created",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("unexpected port %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("unexpected read timeout %v", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "store-prod" || cfg.Firebase.ProjectID != "auth-prod" {
		t.Fatalf("unexpected project ids %+v", cfg)
	}
	if cfg.Pricing.MaxMonetaryAmount != 250000 {
		t.Fatalf("unexpected ceiling %v", cfg.Pricing.MaxMonetaryAmount)
	}
	if cfg.Jobs.OrderTopic != "order.created" {
		t.Fatalf("unexpected order topic %q", cfg.Jobs.OrderTopic)
	}
}

func TestLoad_MissingProject(t *testing.T) {
	_, err := Load(WithEnvFile(""), WithoutSystemEnv())
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError got %v", err)
	}
	if len(verr.Fields()) == 0 {
		t.Fatalf("expected missing fields listed")
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	cfg, err := Load(
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"GOOGLE_CLOUD_PROJECT":        "demo",
			"PRICING_MAX_MONETARY_AMOUNT": "not-a-number",
			"SERVER_WRITE_TIMEOUT":        "-3s",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Pricing.MaxMonetaryAmount != 1_000_000 {
		t.Fatalf("expected fallback ceiling got %v", cfg.Pricing.MaxMonetaryAmount)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Fatalf("expected fallback write timeout got %v", cfg.Server.WriteTimeout)
	}
}
