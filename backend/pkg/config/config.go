package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	apperrors "sonar/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Postgres. An empty DatabaseURL disables the relational mirror.
	DatabaseURL    string
	DBMaxConns     int
	MigrateOnStart bool
	QueryDebug     bool

	// Import
	ImportBatchSize int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		Neo4jURI:        getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:       getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:   getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:   getEnv("NEO4J_DATABASE", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DBMaxConns:      getEnvInt("DB_MAX_CONNS", 10),
		MigrateOnStart:  getEnvBool("MIGRATE_ON_START", false),
		QueryDebug:      getEnvBool("QUERY_DEBUG", false),
		ImportBatchSize: getEnvInt("IMPORT_BATCH_SIZE", 500),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_URI")
	}
	if c.Neo4jUser == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_USER")
	}
	if c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	if c.ImportBatchSize <= 0 {
		return apperrors.NewConfigValidationFailed("IMPORT_BATCH_SIZE", "must be positive")
	}
	if c.DBMaxConns <= 0 {
		return apperrors.NewConfigValidationFailed("DB_MAX_CONNS", "must be positive")
	}
	if c.MigrateOnStart && c.DatabaseURL == "" {
		return apperrors.NewConfigValidationFailed("MIGRATE_ON_START", "requires DATABASE_URL")
	}
	return nil
}

// HasRelationalStore reports whether a Postgres connection is configured
func (c *Config) HasRelationalStore() bool {
	return c.DatabaseURL != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
