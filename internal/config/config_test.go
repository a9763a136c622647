package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Session.CookieName != "sessionid" {
		t.Errorf("Expected session cookie 'sessionid', got %s", cfg.Session.CookieName)
	}
	if cfg.Session.CSRFHeader != "X-CSRFToken" {
		t.Errorf("Expected CSRF header 'X-CSRFToken', got %s", cfg.Session.CSRFHeader)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Errorf("Expected redis addr localhost:6379, got %s", cfg.Redis.Addr())
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ENABLE_CART_EVENTS", "false")
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("CART_RATE_LIMIT_RPS", "not-a-number")

	cfg := Load()

	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("Expected session TTL 2h, got %s", cfg.Session.TTL)
	}
	if cfg.Features.EnableCartEvents {
		t.Error("Expected cart events to be disabled")
	}
	if cfg.Session.Backend != "memory" {
		t.Errorf("Expected memory backend, got %s", cfg.Session.Backend)
	}
	if cfg.RateLimit.RequestsPerSecond != 20 {
		t.Errorf("Expected fallback rate limit 20, got %d", cfg.RateLimit.RequestsPerSecond)
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "shop", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=shop sslmode=disable"
	if got := d.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
