package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server              ServerConfig
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	Session             SessionConfig
	Cart                CartConfig
	PaymentService      ServiceConfig
	NotificationService ServiceConfig
	RateLimit           RateLimitConfig
	Features            FeatureFlags
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	PublicURL       string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}

type KafkaConfig struct {
	Brokers       []string
	CartTopic     string
	OrdersTopic   string
	PaymentsTopic string
	ConsumerGroup string
}

// SessionConfig controls the session cookie and its backend.
type SessionConfig struct {
	Backend      string // "redis" or "memory"
	CookieName   string
	CSRFCookie   string
	CSRFHeader   string
	TTL          time.Duration
	SecureCookie bool
}

type CartConfig struct {
	Currency string
}

type ServiceConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RateLimitConfig throttles cart mutations per session. RequestsPerSecond 0 disables it.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

type FeatureFlags struct {
	EnableCartEvents      bool
	EnableProductCache    bool
	EnablePaymentConsumer bool
	RunMigrations         bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("SERVER_SHUTDOWN_TIMEOUT", 30)) * time.Second,
			PublicURL:       getEnvString("PUBLIC_URL", "http://localhost:8084"),
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "acme"),
			Password:     getEnvString("DB_PASSWORD", "acme"),
			Name:         getEnvString("DB_NAME", "acme_shop"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("PRODUCT_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			CartTopic:     getEnvString("KAFKA_CART_TOPIC", "cart-events"),
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "order-events"),
			PaymentsTopic: getEnvString("KAFKA_PAYMENTS_TOPIC", "payment-events"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "cart-service"),
		},
		Session: SessionConfig{
			Backend:      getEnvString("SESSION_BACKEND", "redis"),
			CookieName:   getEnvString("SESSION_COOKIE_NAME", "sessionid"),
			CSRFCookie:   getEnvString("CSRF_COOKIE_NAME", "csrftoken"),
			CSRFHeader:   getEnvString("CSRF_HEADER_NAME", "X-CSRFToken"),
			TTL:          getEnvDuration("SESSION_TTL", 14*24*time.Hour),
			SecureCookie: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Cart: CartConfig{
			Currency: getEnvString("CART_CURRENCY", "usd"),
		},
		PaymentService: ServiceConfig{
			BaseURL: getEnvString("PAYMENT_GATEWAY_URL", "http://localhost:8083"),
			APIKey:  getEnvString("PAYMENT_GATEWAY_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("PAYMENT_GATEWAY_TIMEOUT", 30)) * time.Second,
		},
		NotificationService: ServiceConfig{
			BaseURL: getEnvString("NOTIFICATION_SERVICE_URL", "http://localhost:8085"),
			APIKey:  getEnvString("NOTIFICATION_SERVICE_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("NOTIFICATION_SERVICE_TIMEOUT", 10)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvInt("CART_RATE_LIMIT_RPS", 20),
			Burst:             getEnvInt("CART_RATE_LIMIT_BURST", 40),
		},
		Features: FeatureFlags{
			EnableCartEvents:      getEnvBool("ENABLE_CART_EVENTS", true),
			EnableProductCache:    getEnvBool("ENABLE_PRODUCT_CACHE", true),
			EnablePaymentConsumer: getEnvBool("ENABLE_PAYMENT_CONSUMER", true),
			RunMigrations:         getEnvBool("RUN_MIGRATIONS", false),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
