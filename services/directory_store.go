package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// DirectoryStore persists shard registrations for the root directory.
type DirectoryStore interface {
	SaveShard(info *ShardInfo) error
	DeleteShard(id string) error
	LoadAllShards() ([]*ShardInfo, error)
	Close() error
}

// PostgresDirectoryStore implements DirectoryStore with PostgreSQL
// persistence.
type PostgresDirectoryStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresDirectoryStore creates a new PostgreSQL-backed store.
func NewPostgresDirectoryStore(config *PostgresConfig) (*PostgresDirectoryStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresDirectoryStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresDirectoryStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS registered_shards (
		id VARCHAR(63) PRIMARY KEY,
		http_endpoint VARCHAR(512) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_shards_created ON registered_shards(created_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveShard persists a shard registration, replacing the endpoint on
// re-registration.
func (s *PostgresDirectoryStore) SaveShard(info *ShardInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO registered_shards (id, http_endpoint, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (id) DO UPDATE SET
		http_endpoint = EXCLUDED.http_endpoint,
		updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, info.ID, info.Endpoint)
	return err
}

// DeleteShard removes a shard registration.
func (s *PostgresDirectoryStore) DeleteShard(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, "DELETE FROM registered_shards WHERE id = $1", id)
	return err
}

// LoadAllShards retrieves all persisted registrations in id order.
func (s *PostgresDirectoryStore) LoadAllShards() ([]*ShardInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT id, http_endpoint FROM registered_shards ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shards []*ShardInfo
	for rows.Next() {
		var info ShardInfo
		if err := rows.Scan(&info.ID, &info.Endpoint); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		shards = append(shards, &info)
	}

	return shards, rows.Err()
}

// Close closes the database connection.
func (s *PostgresDirectoryStore) Close() error {
	return s.db.Close()
}

// InMemoryDirectoryStore implements DirectoryStore for testing without a
// database.
type InMemoryDirectoryStore struct {
	mu     sync.RWMutex
	shards map[string]*ShardInfo
}

// NewInMemoryDirectoryStore creates an in-memory store.
func NewInMemoryDirectoryStore() *InMemoryDirectoryStore {
	return &InMemoryDirectoryStore{shards: make(map[string]*ShardInfo)}
}

// SaveShard stores a shard registration in memory.
func (s *InMemoryDirectoryStore) SaveShard(info *ShardInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shards[info.ID] = &ShardInfo{ID: info.ID, Endpoint: info.Endpoint}
	return nil
}

// DeleteShard removes a shard registration from memory.
func (s *InMemoryDirectoryStore) DeleteShard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shards, id)
	return nil
}

// LoadAllShards returns all stored registrations in id order.
func (s *InMemoryDirectoryStore) LoadAllShards() ([]*ShardInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shards := make([]*ShardInfo, 0, len(s.shards))
	for _, info := range s.shards {
		shards = append(shards, &ShardInfo{ID: info.ID, Endpoint: info.Endpoint})
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].ID < shards[j].ID })
	return shards, nil
}

// Close is a no-op.
func (s *InMemoryDirectoryStore) Close() error { return nil }
