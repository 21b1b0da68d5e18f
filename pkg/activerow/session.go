// Package activerow is the public entry point for working with database
// records. A Session owns one database connection, its schema cache, and the
// lifecycle event pipeline; records created through the session share all
// three.
//
// Typical usage:
//
//	session, _ := activerow.Open(config)
//	defer session.Close()
//
//	rec, _ := session.NewRecord(ctx, "customer")
//	rec.Set("name", "Qiang")
//	rec.Insert(ctx)
package activerow

import (
	"context"
	"fmt"
	"log"

	"github.com/activerow/activerow/internal/core"
	"github.com/activerow/activerow/internal/database"
	"github.com/activerow/activerow/internal/events"
	"github.com/activerow/activerow/internal/query"
	"github.com/activerow/activerow/internal/record"
	"github.com/activerow/activerow/internal/registry"
	"github.com/activerow/activerow/internal/schema"
)

// Config is the session configuration. See the registry package for the
// available sections and their defaults.
type Config = registry.Config

// dialect is what a database backend must provide to a session.
type dialect interface {
	core.Dialect
	UseSchemaProvider(core.SchemaProvider)
}

// Session owns a database connection and the shared collaborators records
// need: the caching schema provider, the query factory, the schema registry,
// and (when configured) the event dispatcher.
type Session struct {
	dialect    dialect
	schemas    *schema.CachingProvider
	schemaReg  *registry.SchemaRegistry
	queries    core.QueryFactory
	dispatcher *events.Dispatcher
	publisher  events.Publisher
	redisCache *schema.RedisCache
}

// Open creates a session from a configuration. The database connection is
// established and verified before Open returns.
func Open(config *Config) (*Session, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	d, err := openDialect(config)
	if err != nil {
		return nil, err
	}

	s := &Session{
		dialect:   d,
		schemaReg: registry.NewSchemaRegistry(nil),
		queries:   query.NewFactory(d, d),
	}

	cache, redisCache, err := openSchemaCache(config)
	if err != nil {
		d.Close()
		return nil, err
	}
	s.redisCache = redisCache
	s.schemas = schema.NewCachingProvider(d, cache)
	d.UseSchemaProvider(s.schemas)

	if config.Events.Enabled {
		publisher, err := openPublisher(config)
		if err != nil {
			s.closeCache()
			d.Close()
			return nil, err
		}
		s.publisher = publisher
		s.dispatcher = events.NewDispatcher(publisher, events.DispatcherConfig{
			BufferSize:     config.Events.BufferSize,
			PublishRate:    config.Events.PublishRate,
			PublishTimeout: config.Events.PublishTimeout,
		})
		if err := s.dispatcher.Start(context.Background()); err != nil {
			s.closeCache()
			d.Close()
			return nil, err
		}
	}

	log.Printf("[SESSION] Opened %s session", config.Database.Type)
	return s, nil
}

// OpenFromFile creates a session from a YAML or JSON configuration file.
func OpenFromFile(path string) (*Session, error) {
	cm := registry.NewConfigManager()
	if err := cm.LoadFromFile(path); err != nil {
		return nil, err
	}
	return Open(cm.GetConfig())
}

func openDialect(config *Config) (dialect, error) {
	db := config.Database
	switch db.Type {
	case "mysql":
		return database.NewMySQLDialect(db.Host, db.Port, db.Database, db.Username, db.Password,
			db.MaxOpenConns, db.MaxIdleConns, db.ConnMaxLifetime, db.ConnectionTimeout)
	case "postgres":
		return database.NewPostgresDialect(db.Host, db.Port, db.Database, db.Username, db.Password, db.SSLMode,
			db.MaxOpenConns, db.MaxIdleConns, db.ConnMaxLifetime, db.ConnectionTimeout)
	case "sqlite":
		return database.NewSQLiteDialect(db.Path)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", db.Type)
	}
}

func openSchemaCache(config *Config) (schema.Cache, *schema.RedisCache, error) {
	sc := config.SchemaCache
	switch sc.Type {
	case "", "memory":
		return schema.NewMemoryCache(), nil, nil
	case "redis":
		rc := sc.RedisConfig
		if len(rc.Endpoints) == 0 {
			return nil, nil, fmt.Errorf("schema cache endpoints are required")
		}
		cache, err := schema.NewRedisCache(rc.Endpoints[0], rc.Password, rc.DB, sc.Namespace, sc.TTL, rc.DialTimeout)
		if err != nil {
			return nil, nil, err
		}
		return cache, cache, nil
	default:
		return nil, nil, fmt.Errorf("unsupported schema cache type: %s", sc.Type)
	}
}

func openPublisher(config *Config) (events.Publisher, error) {
	ev := config.Events
	switch ev.Type {
	case "", "memory":
		return events.NewMemoryPublisher(), nil
	case "kafka":
		return events.NewKafkaPublisher(events.KafkaPublisherConfig{
			Brokers:      ev.KafkaConfig.Brokers,
			Topic:        ev.KafkaConfig.Topic,
			BatchSize:    ev.KafkaConfig.BatchSize,
			BatchTimeout: ev.KafkaConfig.BatchTimeout,
			WriteTimeout: ev.KafkaConfig.WriteTimeout,
			RequiredAcks: ev.KafkaConfig.RequiredAcks,
		})
	default:
		return nil, fmt.Errorf("unsupported events type: %s", ev.Type)
	}
}

// NewRecord creates an empty record bound to a table. The table schema is
// resolved through the caching provider and registered with the session's
// schema registry.
func (s *Session) NewRecord(ctx context.Context, tableName string) (*record.Record, error) {
	tableSchema, err := s.schemas.GetTableSchema(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if err := s.schemaReg.Register(ctx, tableName, tableSchema); err != nil {
		return nil, err
	}

	rec := record.New(tableSchema, s.dialect, s.dialect, s.queries)
	if s.dispatcher != nil {
		rec.SetNotifier(s.dispatcher)
	}
	return rec, nil
}

// Find returns a query scoped to a table.
func (s *Session) Find(tableName string) core.Query {
	return s.queries(tableName)
}

// FindOne loads the single record matching a condition, or nil when no row
// matches. The condition is validated against the table's schema before it
// reaches the query layer; an unrecognized key is an error, never a silently
// dropped filter.
func (s *Session) FindOne(ctx context.Context, tableName string, condition map[string]interface{}) (*record.Record, error) {
	rec, err := s.NewRecord(ctx, tableName)
	if err != nil {
		return nil, err
	}

	filtered, err := rec.FilterCondition(condition)
	if err != nil {
		return nil, err
	}

	row, err := s.queries(tableName).Where(filtered).One(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	if err := rec.Populate(row); err != nil {
		return nil, err
	}
	return rec, nil
}

// TableSchema resolves the schema for a table through the caching provider.
func (s *Session) TableSchema(ctx context.Context, tableName string) (*core.Schema, error) {
	return s.schemas.GetTableSchema(ctx, tableName)
}

// InvalidateSchema drops the cached schema for a table so the next access
// re-introspects the database.
func (s *Session) InvalidateSchema(ctx context.Context, tableName string) error {
	return s.schemas.Invalidate(ctx, tableName)
}

// ClearSchemaCache drops every cached schema.
func (s *Session) ClearSchemaCache(ctx context.Context) error {
	return s.schemas.Clear(ctx)
}

// Registry returns the session's schema registry.
func (s *Session) Registry() *registry.SchemaRegistry {
	return s.schemaReg
}

// Database returns the session's low-level database access.
func (s *Session) Database() core.Database {
	return s.dialect
}

func (s *Session) closeCache() {
	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			log.Printf("[SESSION] WARNING: Failed to close schema cache: %v", err)
		}
	}
}

// Close stops the event pipeline and closes every connection the session
// owns.
func (s *Session) Close() error {
	if s.dispatcher != nil {
		if err := s.dispatcher.Stop(); err != nil {
			log.Printf("[SESSION] WARNING: Failed to stop dispatcher: %v", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Printf("[SESSION] WARNING: Failed to close publisher: %v", err)
		}
	}
	s.closeCache()
	return s.dialect.Close()
}
