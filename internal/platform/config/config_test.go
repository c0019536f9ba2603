package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "comanda-dev",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "comanda-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Orders.Currency != "EUR" {
		t.Errorf("expected default currency EUR, got %s", cfg.Orders.Currency)
	}
	if cfg.Orders.NumberPrefix != "CO" {
		t.Errorf("expected default number prefix CO, got %s", cfg.Orders.NumberPrefix)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_READ_TIMEOUT":       "20s",
		"API_FIRESTORE_PROJECT_ID":      "comanda-prod",
		"API_FIRESTORE_EMULATOR_HOST":   "localhost:8900",
		"API_PUBSUB_PROJECT_ID":         "comanda-events",
		"API_PUBSUB_ORDER_EVENTS_TOPIC": "order-events",
		"API_ORDERS_CURRENCY":           "usd",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "comanda-events" {
		t.Errorf("unexpected pubsub project: %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != "order-events" {
		t.Errorf("unexpected topic: %s", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.Orders.Currency != "USD" {
		t.Errorf("expected currency upper-cased, got %s", cfg.Orders.Currency)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error when firestore project is missing")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Firestore.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Firestore.ProjectID in %v", validation.Fields())
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nAPI_FIRESTORE_PROJECT_ID=comanda-local\nexport API_SERVER_PORT=7070\nAPI_ORDERS_NUMBER_PREFIX=\"LX\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvFile(path), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.ProjectID != "comanda-local" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Orders.NumberPrefix != "LX" {
		t.Errorf("expected quotes stripped, got %s", cfg.Orders.NumberPrefix)
	}
}
