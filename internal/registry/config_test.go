package registry

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cm := NewConfigManager()
	config := cm.GetConfig()

	if config.Database.Type != "mysql" {
		t.Fatalf("default database type = %q", config.Database.Type)
	}
	if config.SchemaCache.Type != "memory" {
		t.Fatalf("default schema cache type = %q", config.SchemaCache.Type)
	}
	if config.Events.Enabled {
		t.Fatal("events should be disabled by default")
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlData := `
database:
  type: postgres
  host: db.internal
  port: 5432
  database: app
  username: app
  password: secret
  max_open_conns: 10
schema_cache:
  type: redis
  namespace: app
  redis_config:
    endpoints:
      - redis.internal:6379
events:
  enabled: true
  type: kafka
  publish_rate: 50
  kafka_config:
    brokers:
      - kafka.internal:9092
    topic: app-events
`
	cm := NewConfigManager()
	if err := cm.LoadFromYAML([]byte(yamlData)); err != nil {
		t.Fatalf("LoadFromYAML failed: %v", err)
	}

	config := cm.GetConfig()
	if config.Database.Type != "postgres" || config.Database.Port != 5432 {
		t.Fatalf("database config = %+v", config.Database)
	}
	if config.SchemaCache.Type != "redis" || config.SchemaCache.Namespace != "app" {
		t.Fatalf("schema cache config = %+v", config.SchemaCache)
	}
	if config.SchemaCache.TTL != 1*time.Hour {
		t.Fatalf("schema cache ttl = %v, want default", config.SchemaCache.TTL)
	}
	if !config.Events.Enabled || config.Events.KafkaConfig.Topic != "app-events" {
		t.Fatalf("events config = %+v", config.Events)
	}
	// Untouched sections keep their defaults.
	if config.Database.ConnMaxLifetime != 5*time.Minute {
		t.Fatalf("conn max lifetime = %v", config.Database.ConnMaxLifetime)
	}
}

func TestLoadFromJSON(t *testing.T) {
	jsonData := `{
		"database": {
			"type": "sqlite",
			"path": ":memory:"
		}
	}`
	cm := NewConfigManager()
	if err := cm.LoadFromJSON([]byte(jsonData)); err != nil {
		t.Fatalf("LoadFromJSON failed: %v", err)
	}
	if cm.GetConfig().Database.Path != ":memory:" {
		t.Fatalf("database path = %q", cm.GetConfig().Database.Path)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown database type",
			yaml: "database:\n  type: oracle\n",
			want: "database.type",
		},
		{
			name: "sqlite without path",
			yaml: "database:\n  type: sqlite\n",
			want: "database.path",
		},
		{
			name: "mysql without database name",
			yaml: "database:\n  type: mysql\n  host: h\n  port: 3306\n  username: u\n  max_open_conns: 1\n",
			want: "database.database",
		},
		{
			name: "unknown cache type",
			yaml: "database:\n  type: sqlite\n  path: x.db\nschema_cache:\n  type: memcached\n",
			want: "schema_cache.type",
		},
		{
			name: "kafka events without brokers",
			yaml: "database:\n  type: sqlite\n  path: x.db\nevents:\n  enabled: true\n  type: kafka\n  kafka_config:\n    brokers: []\n",
			want: "brokers",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cm := NewConfigManager()
			err := cm.LoadFromYAML([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ACTIVEROW_DATABASE_TYPE", "sqlite")
	t.Setenv("ACTIVEROW_DATABASE_PATH", "/tmp/app.db")
	t.Setenv("ACTIVEROW_SCHEMA_CACHE_TYPE", "redis")
	t.Setenv("ACTIVEROW_SCHEMA_CACHE_ENDPOINTS", "r1:6379,r2:6379")
	t.Setenv("ACTIVEROW_SCHEMA_CACHE_TTL", "15m")
	t.Setenv("ACTIVEROW_EVENTS_ENABLED", "true")

	cm := NewConfigManager()
	if err := cm.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	config := cm.GetConfig()
	if config.Database.Type != "sqlite" || config.Database.Path != "/tmp/app.db" {
		t.Fatalf("database config = %+v", config.Database)
	}
	if len(config.SchemaCache.RedisConfig.Endpoints) != 2 {
		t.Fatalf("endpoints = %v", config.SchemaCache.RedisConfig.Endpoints)
	}
	if config.SchemaCache.TTL != 15*time.Minute {
		t.Fatalf("ttl = %v", config.SchemaCache.TTL)
	}
	if !config.Events.Enabled {
		t.Fatal("events should be enabled")
	}
}
