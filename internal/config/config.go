// Package config loads process configuration from the environment.
// Both binaries call godotenv.Load first so a local .env file is honoured.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server configures cmd/server.
type Server struct {
	// HTTP
	Port           string
	AllowedOrigins []string

	// Storage
	DataBackend string
	DBPath      string
	DatabaseURL string

	// Identity
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Change events
	AMQPURL      string
	AMQPExchange string
}

// Client configures cmd/budget.
type Client struct {
	StoreURL string
	AuthURL  string
	Resync   string
}

// LoadServer reads the server configuration.
func LoadServer() *Server {
	return &Server{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		DataBackend: getEnv("DATA_BACKEND", "sqlite"),
		DBPath:      getEnv("DB_PATH", "./data/budget.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budget.events"),
	}
}

// LoadClient reads the client configuration.
func LoadClient() *Client {
	return &Client{
		StoreURL: getEnv("BUDGET_STORE_URL", "http://localhost:8080"),
		AuthURL:  getEnv("BUDGET_AUTH_URL", "http://localhost:8080"),
		Resync:   getEnv("BUDGET_RESYNC", "all"),
	}
}

// Validate reports every problem with the server configuration at once.
func (c *Server) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.DBPath == "" {
			errors = append(errors, "DB_PATH cannot be empty when using sqlite backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite postgres]", c.DataBackend))
	}

	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 bytes")
	}
	if c.AccessTokenTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid access token TTL %v: must be positive", c.AccessTokenTTL))
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		errors = append(errors, "REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Validate checks the client endpoints and resync strategy.
func (c *Client) Validate() error {
	var errors []string

	for name, raw := range map[string]string{"BUDGET_STORE_URL": c.StoreURL, "BUDGET_AUTH_URL": c.AuthURL} {
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an http(s) URL", name, raw))
		}
	}

	if c.Resync != "all" && c.Resync != "user" {
		errors = append(errors, fmt.Sprintf("invalid resync strategy '%s': must be 'all' or 'user'", c.Resync))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
	return out
}
