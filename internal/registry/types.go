package registry

import (
	"time"
)

// Config is the full runtime configuration: the database connection, the
// schema cache, and the lifecycle event pipeline.
type Config struct {
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	SchemaCache SchemaCacheConfig `yaml:"schema_cache" json:"schema_cache"`
	Events      EventsConfig      `yaml:"events" json:"events"`
}

// DatabaseConfig contains configuration for the backing database.
type DatabaseConfig struct {
	Type              string        `yaml:"type" json:"type"` // mysql, postgres, or sqlite
	Host              string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port              int           `yaml:"port,omitempty" json:"port,omitempty"`
	Database          string        `yaml:"database,omitempty" json:"database,omitempty"`
	Username          string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode           string        `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`
	Path              string        `yaml:"path,omitempty" json:"path,omitempty"` // sqlite only
	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// SchemaCacheConfig contains configuration for the table schema cache.
type SchemaCacheConfig struct {
	Type        string        `yaml:"type" json:"type"` // memory or redis
	TTL         time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	Namespace   string        `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	RedisConfig RedisConfig   `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	Endpoints    []string      `yaml:"endpoints" json:"endpoints"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int           `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// EventsConfig contains configuration for the record lifecycle event pipeline.
type EventsConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Type           string        `yaml:"type,omitempty" json:"type,omitempty"` // memory or kafka
	BufferSize     int           `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
	PublishRate    int           `yaml:"publish_rate,omitempty" json:"publish_rate,omitempty"` // events per second
	PublishTimeout time.Duration `yaml:"publish_timeout,omitempty" json:"publish_timeout,omitempty"`
	KafkaConfig    KafkaConfig   `yaml:"kafka_config,omitempty" json:"kafka_config,omitempty"`
}

// KafkaConfig contains Kafka-specific configuration.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	BatchSize    int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	RequiredAcks int           `yaml:"required_acks,omitempty" json:"required_acks,omitempty"`
}
