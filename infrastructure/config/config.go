package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Storage
	StorageBackend   string
	AWSRegion        string
	DynamoDBTable    string
	SessionsTable    string
	DynamoDBEndpoint string // local DynamoDB for development
	EventBusName     string
	MetricsNamespace string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret  string
	JWTIssuer  string
	WriteRoles []string

	// Caching and sessions
	QueryCacheTTL int // seconds, 0 disables the query cache
	SessionTTL    time.Duration

	// Feature flags
	EnableAuth    bool
	EnableMetrics bool
	EnableTracing bool
	EnableEvents  bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		StorageBackend:   getEnv("STORAGE_BACKEND", StorageMemory),
		AWSRegion:        getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:    getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "valuetree")),
		SessionsTable:    getEnv("SESSIONS_TABLE", "valuetree-sessions"),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		EventBusName:     getEnv("EVENT_BUS_NAME", "valuetree-events"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "ValueTree"),

		// Authentication
		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTIssuer:  getEnv("JWT_ISSUER", "valuetree"),
		WriteRoles: getEnvList("WRITE_ROLES"),

		QueryCacheTTL: getEnvInt("QUERY_CACHE_TTL", 0),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),

		// Logging and features
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableAuth:    getEnvBool("ENABLE_AUTH", false),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableEvents:  getEnvBool("ENABLE_EVENTS", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
		}
		if c.SessionsTable == "" {
			return fmt.Errorf("SESSIONS_TABLE is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.EnableAuth && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENABLE_AUTH is set")
	}
	if c.EnableEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when ENABLE_EVENTS is set")
	}
	if c.QueryCacheTTL < 0 {
		return fmt.Errorf("QUERY_CACHE_TTL cannot be negative")
	}

	if c.Environment == "production" && c.StorageBackend == StorageMemory {
		return fmt.Errorf("the memory backend cannot be used in production")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NeedsAWS reports whether any AWS client has to be configured
func (c *Config) NeedsAWS() bool {
	return c.StorageBackend == StorageDynamoDB || c.EnableEvents || c.EnableMetrics
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
// getEnvList splits a comma-separated variable, dropping blank entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90m") or whole seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
