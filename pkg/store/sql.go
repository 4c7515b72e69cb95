package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL
	_ "github.com/lib/pq"              // PostgreSQL
)

// SQLConfig configures the SQL driver
type SQLConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// SQLStore keeps items in a single table. Save is one upsert statement.
type SQLStore struct {
	db      *sql.DB
	dialect string
	table   string
}

var sqlDialects = map[string]string{
	"postgres":   "postgres",
	"postgresql": "postgres",
	"mysql":      "mysql",
	"mariadb":    "mysql",
}

// NewSQL opens the database, pings it and creates the items table if missing.
func NewSQL(ctx context.Context, dialect string, cfg SQLConfig) (*SQLStore, error) {
	driver, ok := sqlDialects[strings.ToLower(dialect)]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", dialect)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%s dsn required", driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewSQLWithDB(db, driver, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLWithDB wraps an open database handle
func NewSQLWithDB(db *sql.DB, dialect, table string) (*SQLStore, error) {
	driver, ok := sqlDialects[strings.ToLower(dialect)]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", dialect)
	}
	if table == "" {
		table = "afipws_items"
	}
	return &SQLStore{db: db, dialect: driver, table: table}, nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// EnsureSchema creates the items table if it does not exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR(255) PRIMARY KEY,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLStore) Read(ctx context.Context, id string) (*Item, error) {
	query := fmt.Sprintf("SELECT content, metadata FROM %s WHERE id = %s", s.table, s.placeholder(1))

	var content, metadata string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&content, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select item %q: %w", id, err)
	}

	item := Item{ID: id, Content: json.RawMessage(content)}
	if err := json.Unmarshal([]byte(metadata), &item.Metadata); err != nil {
		return nil, fmt.Errorf("corrupt metadata for %q: %w", id, err)
	}
	return &item, nil
}

func (s *SQLStore) Save(ctx context.Context, item Item) error {
	if err := validateID(item.ID); err != nil {
		return err
	}
	if item.Metadata == nil {
		item.Metadata = map[string]interface{}{}
	}
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %q: %w", item.ID, err)
	}

	var stmt string
	if s.dialect == "postgres" {
		stmt = fmt.Sprintf(`INSERT INTO %s (id, content, metadata, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at`, s.table)
	} else {
		stmt = fmt.Sprintf(`INSERT INTO %s (id, content, metadata, updated_at) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE content = VALUES(content), metadata = VALUES(metadata), updated_at = VALUES(updated_at)`, s.table)
	}

	if _, err := s.db.ExecContext(ctx, stmt, item.ID, string(item.Content), string(metadata), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert item %q: %w", item.ID, err)
	}
	return nil
}

func (s *SQLStore) Exists(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE id = %s", s.table, s.placeholder(1))
	var n int
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return false, fmt.Errorf("count item %q: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
