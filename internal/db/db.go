package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// ErrNoDatabaseURL is returned by InitFromEnv when DATABASE_URL is unset.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is not set")

// DB is a PostgreSQL-backed store for generation runs.
type DB struct {
	client *sql.DB
	config *Config
}

// Config holds PostgreSQL connection settings
type Config struct {
	DatabaseURL        string
	MaxIdleConns       int
	MaxOpenConns       int
	MaxLifetime        time.Duration
	StatementTimeoutMs int
}

func (c *Config) withDefaults() {
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 4
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = 5 * time.Minute
	}
}

// ConnectionString returns the DSN with a statement timeout applied.
func (c *Config) ConnectionString() string {
	return AugmentDSNWithTimeout(c.DatabaseURL, c.StatementTimeoutMs)
}

// New connects, pings and ensures the schema exists.
func New(ctx context.Context, config *Config) (*DB, error) {
	if config == nil || config.DatabaseURL == "" {
		return nil, ErrNoDatabaseURL
	}
	config.withDefaults()

	client, err := sql.Open("pgx", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	client.SetMaxOpenConns(config.MaxOpenConns)
	client.SetMaxIdleConns(config.MaxIdleConns)
	client.SetConnMaxLifetime(config.MaxLifetime)

	if err := client.PingContext(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if err := setupSchema(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}

	return &DB{client: client, config: config}, nil
}

// InitFromEnv connects using DATABASE_URL, retrying transient failures.
func InitFromEnv(ctx context.Context) (*DB, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, ErrNoDatabaseURL
	}
	return connectWithRetry(ctx, DefaultRetryConfig(), func() (*DB, error) {
		return New(ctx, &Config{DatabaseURL: url, StatementTimeoutMs: 60000})
	})
}

// NewWithDB wraps an existing connection. The schema is assumed to exist.
func NewWithDB(client *sql.DB) *DB {
	return &DB{client: client, config: &Config{}}
}

// GetDB returns the underlying connection.
func (d *DB) GetDB() *sql.DB {
	return d.client
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.client.Close()
}

func setupSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS llm_runs (
			id UUID PRIMARY KEY,
			base_url TEXT,
			strategy TEXT NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			page_count INTEGER NOT NULL,
			locales TEXT[] NOT NULL DEFAULT '{}',
			out_file TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create llm_runs table: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS llm_pages (
			run_id UUID NOT NULL REFERENCES llm_runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			description TEXT,
			locale TEXT,
			word_count INTEGER NOT NULL,
			extract JSONB NOT NULL,
			PRIMARY KEY (run_id, position)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create llm_pages table: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_llm_runs_base_url_generated
		ON llm_runs(base_url, generated_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create llm_runs index: %w", err)
	}

	log.Debug().Msg("Page store schema ready")
	return nil
}

// AugmentDSNWithTimeout adds statement_timeout to a DSN unless one is already
// present. Both URL and key=value DSNs are supported.
func AugmentDSNWithTimeout(dsn string, timeoutMs int) string {
	if dsn == "" || timeoutMs <= 0 || strings.Contains(dsn, "statement_timeout") {
		return dsn
	}
	value := fmt.Sprintf("statement_timeout=%d", timeoutMs)

	if strings.HasPrefix(dsn, "postgresql://") || strings.HasPrefix(dsn, "postgres://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + value
		}
		return dsn + "?" + value
	}
	return dsn + " " + value
}
