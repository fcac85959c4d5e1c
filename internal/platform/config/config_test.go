package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Database.Path != "vendorlane.db" {
		t.Fatalf("expected default database path, got %q", cfg.Database.Path)
	}
	if cfg.Commerce.DefaultCurrency != "EUR" {
		t.Fatalf("expected default currency EUR, got %q", cfg.Commerce.DefaultCurrency)
	}
	if cfg.Commerce.QuoteValidDays != 14 {
		t.Fatalf("expected 14 quote valid days, got %d", cfg.Commerce.QuoteValidDays)
	}
	if cfg.Notifications.MaxRetries != 3 {
		t.Fatalf("expected 3 max retries, got %d", cfg.Notifications.MaxRetries)
	}
	if cfg.Notifications.RedeliverInterval != time.Minute {
		t.Fatalf("expected 1m redeliver interval, got %s", cfg.Notifications.RedeliverInterval)
	}
}

func TestLoadEnvMapOverrides(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_READ_TIMEOUT":       "5s",
		"API_DATABASE_PATH":             "/tmp/test.db",
		"API_COMMERCE_CURRENCY":         "pln",
		"API_COMMERCE_QUOTE_VALID_DAYS": "7",
		"API_NOTIFY_PROJECT_ID":         "demo-project",
		"API_NOTIFY_TOPIC_ID":           "notifications",
		"API_NOTIFY_REDELIVER_INTERVAL": "30s",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected 5s read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Fatalf("expected /tmp/test.db, got %q", cfg.Database.Path)
	}
	if cfg.Commerce.DefaultCurrency != "PLN" {
		t.Fatalf("expected currency upper-cased to PLN, got %q", cfg.Commerce.DefaultCurrency)
	}
	if cfg.Commerce.QuoteValidDays != 7 {
		t.Fatalf("expected 7 quote valid days, got %d", cfg.Commerce.QuoteValidDays)
	}
	if cfg.Notifications.ProjectID != "demo-project" || cfg.Notifications.TopicID != "notifications" {
		t.Fatalf("expected pubsub settings, got %q / %q", cfg.Notifications.ProjectID, cfg.Notifications.TopicID)
	}
	if cfg.Notifications.RedeliverInterval != 30*time.Second {
		t.Fatalf("expected 30s redeliver interval, got %s", cfg.Notifications.RedeliverInterval)
	}
}

func TestLoadValidatesFields(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_COMMERCE_CURRENCY":         "EURO",
		"API_COMMERCE_QUOTE_VALID_DAYS": "-1",
	}))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	want := map[string]bool{"commerce.default_currency": true, "commerce.quote_valid_days": true}
	for _, field := range validationErr.Invalid {
		if !want[field] {
			t.Fatalf("unexpected invalid field %q", field)
		}
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("missing invalid fields: %v", want)
	}
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_SERVER_READ_TIMEOUT":       "soon",
		"API_COMMERCE_QUOTE_VALID_DAYS": "two weeks",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("expected fallback read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Commerce.QuoteValidDays != 14 {
		t.Fatalf("expected fallback quote valid days, got %d", cfg.Commerce.QuoteValidDays)
	}
}
