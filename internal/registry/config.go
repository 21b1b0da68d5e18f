// Package registry holds the runtime configuration layer and the registry of
// table schemas a session has resolved.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *Config
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: defaultConfig(),
	}
}

// defaultConfig returns a configuration with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:              "mysql",
			Host:              "localhost",
			Port:              3306,
			MaxOpenConns:      25,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		SchemaCache: SchemaCacheConfig{
			Type:      "memory",
			TTL:       1 * time.Hour,
			Namespace: "activerow",
			RedisConfig: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 5,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		Events: EventsConfig{
			Enabled:        false,
			Type:           "memory",
			BufferSize:     10000,
			PublishRate:    200,
			PublishTimeout: 5 * time.Second,
			KafkaConfig: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "activerow-events",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := defaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromJSON loads configuration from JSON data.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := defaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern: ACTIVEROW_<SECTION>_<KEY>
// Examples:
//   - ACTIVEROW_DATABASE_TYPE=postgres
//   - ACTIVEROW_DATABASE_HOST=localhost
//   - ACTIVEROW_DATABASE_PORT=5432
//   - ACTIVEROW_SCHEMA_CACHE_TYPE=redis
//   - ACTIVEROW_EVENTS_ENABLED=true
func (cm *ConfigManager) LoadFromEnv() error {
	config := defaultConfig()

	// Database configuration
	if val := os.Getenv("ACTIVEROW_DATABASE_TYPE"); val != "" {
		config.Database.Type = val
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_HOST"); val != "" {
		config.Database.Host = val
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_PORT"); val != "" {
		var port int
		if _, err := fmt.Sscanf(val, "%d", &port); err == nil {
			config.Database.Port = port
		}
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_DATABASE"); val != "" {
		config.Database.Database = val
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_USERNAME"); val != "" {
		config.Database.Username = val
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_PASSWORD"); val != "" {
		config.Database.Password = val
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_SSL_MODE"); val != "" {
		config.Database.SSLMode = val
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_PATH"); val != "" {
		config.Database.Path = val
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_MAX_OPEN_CONNS"); val != "" {
		var maxOpen int
		if _, err := fmt.Sscanf(val, "%d", &maxOpen); err == nil {
			config.Database.MaxOpenConns = maxOpen
		}
	}
	if val := os.Getenv("ACTIVEROW_DATABASE_MAX_IDLE_CONNS"); val != "" {
		var maxIdle int
		if _, err := fmt.Sscanf(val, "%d", &maxIdle); err == nil {
			config.Database.MaxIdleConns = maxIdle
		}
	}

	// Schema cache configuration
	if val := os.Getenv("ACTIVEROW_SCHEMA_CACHE_TYPE"); val != "" {
		config.SchemaCache.Type = val
	}
	if val := os.Getenv("ACTIVEROW_SCHEMA_CACHE_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			config.SchemaCache.TTL = ttl
		}
	}
	if val := os.Getenv("ACTIVEROW_SCHEMA_CACHE_NAMESPACE"); val != "" {
		config.SchemaCache.Namespace = val
	}
	if val := os.Getenv("ACTIVEROW_SCHEMA_CACHE_ENDPOINTS"); val != "" {
		config.SchemaCache.RedisConfig.Endpoints = strings.Split(val, ",")
	}
	if val := os.Getenv("ACTIVEROW_SCHEMA_CACHE_PASSWORD"); val != "" {
		config.SchemaCache.RedisConfig.Password = val
	}
	if val := os.Getenv("ACTIVEROW_SCHEMA_CACHE_DB"); val != "" {
		var db int
		if _, err := fmt.Sscanf(val, "%d", &db); err == nil {
			config.SchemaCache.RedisConfig.DB = db
		}
	}

	// Events configuration
	if val := os.Getenv("ACTIVEROW_EVENTS_ENABLED"); val != "" {
		config.Events.Enabled = (val == "true" || val == "1")
	}
	if val := os.Getenv("ACTIVEROW_EVENTS_TYPE"); val != "" {
		config.Events.Type = val
	}
	if val := os.Getenv("ACTIVEROW_EVENTS_PUBLISH_RATE"); val != "" {
		var publishRate int
		if _, err := fmt.Sscanf(val, "%d", &publishRate); err == nil {
			config.Events.PublishRate = publishRate
		}
	}
	if val := os.Getenv("ACTIVEROW_EVENTS_BROKERS"); val != "" {
		config.Events.KafkaConfig.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("ACTIVEROW_EVENTS_TOPIC"); val != "" {
		config.Events.KafkaConfig.Topic = val
	}

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// GetConfig returns the current configuration.
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// validateConfig validates the configuration and returns an error if invalid.
func validateConfig(config *Config) error {
	switch config.Database.Type {
	case "mysql", "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if config.Database.Port <= 0 || config.Database.Port > 65535 {
			return fmt.Errorf("database.port must be between 1 and 65535")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database.username is required")
		}
		if config.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be greater than 0")
		}
	case "sqlite":
		if config.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "":
		return fmt.Errorf("database.type is required")
	default:
		return fmt.Errorf("database.type must be 'mysql', 'postgres', or 'sqlite'")
	}

	switch config.SchemaCache.Type {
	case "memory":
	case "redis":
		if len(config.SchemaCache.RedisConfig.Endpoints) == 0 {
			return fmt.Errorf("schema_cache.redis_config.endpoints is required when type is 'redis'")
		}
	default:
		return fmt.Errorf("schema_cache.type must be 'memory' or 'redis'")
	}
	if config.SchemaCache.TTL < 0 {
		return fmt.Errorf("schema_cache.ttl must be non-negative")
	}

	if config.Events.Enabled {
		switch config.Events.Type {
		case "memory":
		case "kafka":
			if len(config.Events.KafkaConfig.Brokers) == 0 {
				return fmt.Errorf("events.kafka_config.brokers is required when type is 'kafka'")
			}
			if config.Events.KafkaConfig.Topic == "" {
				return fmt.Errorf("events.kafka_config.topic is required when type is 'kafka'")
			}
		default:
			return fmt.Errorf("events.type must be 'memory' or 'kafka'")
		}
		if config.Events.PublishRate <= 0 {
			return fmt.Errorf("events.publish_rate must be greater than 0")
		}
		if config.Events.BufferSize <= 0 {
			return fmt.Errorf("events.buffer_size must be greater than 0")
		}
	}

	return nil
}
