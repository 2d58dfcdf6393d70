package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Payment  PaymentConfig
	Email    EmailConfig
	Shipping ShippingConfig
	Orders   OrdersConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
	// AllowedOrigin is the storefront origin sent in CORS responses.
	AllowedOrigin string
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// APIKey guards the admin routes.
	APIKey string
	// JWTSecret verifies customer bearer tokens issued by the auth provider.
	// Empty means every checkout is treated as a guest checkout.
	JWTSecret string
}

// PaymentConfig holds both payment provider configurations.
type PaymentConfig struct {
	Hosted      HostedConfig
	Wallet      WalletConfig
	HTTPTimeout time.Duration
}

// HostedConfig configures the card processor's hosted checkout.
type HostedConfig struct {
	APIURL        string
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// WalletConfig configures the create/capture wallet provider.
type WalletConfig struct {
	APIURL       string
	ClientID     string
	ClientSecret string
}

// EmailConfig configures the transactional email API.
type EmailConfig struct {
	Enabled     bool
	APIURL      string
	APIKey      string
	From        string
	HTTPTimeout time.Duration
}

// ShippingConfig holds where the shipping rate table is loaded from.
type ShippingConfig struct {
	// TablePath is a local JSON file. Empty means the built-in table.
	TablePath string
	S3        S3Config
}

// S3Config holds AWS S3 configuration for the shipping rate table.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "shipping/")
}

// OrdersConfig holds order lifecycle settings.
type OrdersConfig struct {
	NumberPrefix  string
	PendingTTL    time.Duration
	SweepInterval time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),

			AllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "atelier"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey:    getEnv("API_KEY", ""),
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Payment: PaymentConfig{
			Hosted: HostedConfig{
				APIURL:        getEnv("HOSTED_API_URL", "https://api.hosted-payments.example/v1"),
				SecretKey:     getEnv("HOSTED_SECRET_KEY", ""),
				WebhookSecret: getEnv("HOSTED_WEBHOOK_SECRET", ""),
				SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
				CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
			},
			Wallet: WalletConfig{
				APIURL:       getEnv("WALLET_API_URL", "https://api-m.sandbox.wallet.example"),
				ClientID:     getEnv("WALLET_CLIENT_ID", ""),
				ClientSecret: getEnv("WALLET_CLIENT_SECRET", ""),
			},
			HTTPTimeout: getEnvAsDuration("PAYMENT_HTTP_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			APIURL:      getEnv("EMAIL_API_URL", "https://api.mail.example"),
			APIKey:      getEnv("EMAIL_API_KEY", ""),
			From:        getEnv("EMAIL_FROM", "Atelier <orders@atelier.example>"),
			HTTPTimeout: getEnvAsDuration("EMAIL_HTTP_TIMEOUT", 10*time.Second),
		},
		Shipping: ShippingConfig{
			TablePath: getEnv("SHIPPING_TABLE_PATH", ""),
			S3: S3Config{
				Enabled: getEnvAsBool("SHIPPING_S3_ENABLED", false),
				Bucket:  getEnv("SHIPPING_S3_BUCKET", ""),
				Region:  getEnv("SHIPPING_S3_REGION", "eu-west-3"),
				Prefix:  getEnv("SHIPPING_S3_PREFIX", "shipping/"),
			},
		},
		Orders: OrdersConfig{
			NumberPrefix:  getEnv("ORDER_NUMBER_PREFIX", "ATL"),
			PendingTTL:    getEnvAsDuration("ORDER_PENDING_TTL", 24*time.Hour),
			SweepInterval: getEnvAsDuration("ORDER_SWEEP_INTERVAL", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Server.AllowedOrigin == "" {
		return fmt.Errorf("CORS allowed origin is required")
	}

	if c.Payment.HTTPTimeout <= 0 {
		return fmt.Errorf("payment HTTP timeout must be positive")
	}

	if c.Payment.Hosted.SuccessURL == "" || c.Payment.Hosted.CancelURL == "" {
		return fmt.Errorf("checkout success and cancel URLs are required")
	}

	if c.Email.Enabled {
		if c.Email.APIKey == "" {
			return fmt.Errorf("email API key is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email sender is required when email is enabled")
		}
	}

	if c.Shipping.S3.Enabled {
		if c.Shipping.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.Shipping.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
		if c.Shipping.TablePath == "" {
			return fmt.Errorf("shipping table path is required when S3 is enabled")
		}
	}

	if c.Orders.NumberPrefix == "" {
		return fmt.Errorf("order number prefix is required")
	}

	if c.Orders.PendingTTL <= 0 {
		return fmt.Errorf("order pending TTL must be positive")
	}

	if c.Orders.SweepInterval < 0 {
		return fmt.Errorf("order sweep interval cannot be negative")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a time.Duration ("15m", "24h")
// or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
