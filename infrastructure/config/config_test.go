package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"STORAGE_BACKEND", "ENVIRONMENT", "QUERY_CACHE_TTL", "SESSION_TTL", "ENABLE_AUTH", "ENABLE_EVENTS", "ENABLE_METRICS", "WRITE_ROLES"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 0, cfg.QueryCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.NeedsAWS())
	assert.Empty(t, cfg.WriteRoles)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "dynamodb")
	t.Setenv("TABLE_NAME", "trees")
	t.Setenv("SESSIONS_TABLE", "sessions")
	t.Setenv("SESSION_TTL", "3600")
	t.Setenv("QUERY_CACHE_TTL", "30")
	t.Setenv("ENABLE_EVENTS", "true")
	t.Setenv("WRITE_ROLES", " editor, ,admin")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "trees", cfg.DynamoDBTable)
	assert.Equal(t, "sessions", cfg.SessionsTable)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30, cfg.QueryCacheTTL)
	assert.True(t, cfg.EnableEvents)
	assert.True(t, cfg.NeedsAWS())
	assert.Equal(t, []string{"editor", "admin"}, cfg.WriteRoles)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			StorageBackend: StorageMemory,
			Environment:    "development",
			DynamoDBTable:  "trees",
			SessionsTable:  "sessions",
			EventBusName:   "bus",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid memory", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.StorageBackend = "redis" }, true},
		{"dynamodb without table", func(c *Config) { c.StorageBackend = StorageDynamoDB; c.DynamoDBTable = "" }, true},
		{"auth without secret", func(c *Config) { c.EnableAuth = true }, true},
		{"auth with secret", func(c *Config) { c.EnableAuth = true; c.JWTSecret = "s3cret" }, false},
		{"negative cache ttl", func(c *Config) { c.QueryCacheTTL = -1 }, true},
		{"memory in production", func(c *Config) { c.Environment = "production" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
