// Package postgres provides PostgreSQL implementation for snapshot storage.
//
// Payloads are stored as JSONB so runs can be inspected with SQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/storage"
)

// Client is a PostgreSQL snapshot store client.
type Client struct {
	db             *sql.DB
	collectionName string
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	CollectionName string
	SSLMode        string
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, core.NewSimError("NewPostgresClient", fmt.Errorf("%w: %v", core.ErrConnectionFailed, err))
	}

	collection := cfg.CollectionName
	if collection == "" {
		collection = "snapshots"
	}
	client := &Client{
		db:             db,
		collectionName: collection,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			character_name VARCHAR(255) NOT NULL,
			plot_id INTEGER NOT NULL,
			payload JSONB NOT NULL,
			hash VARCHAR(32) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_run_character ON %s(run_id, character_name)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	return nil
}

// Save inserts a snapshot.
//
// JSONB normalizes whitespace and key order, so the stored hash describes the
// payload as saved and Load does not verify it.
func (c *Client) Save(ctx context.Context, snapshot *storage.Snapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, run_id, character_name, plot_id, payload, hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.collectionName)

	snapshot.Hash = storage.Checksum(snapshot.Payload)
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.RunID,
		snapshot.Character,
		snapshot.PlotID,
		string(snapshot.Payload),
		snapshot.Hash,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	return nil
}

// Load retrieves a snapshot by ID.
func (c *Client) Load(ctx context.Context, id int64) (*storage.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, character_name, plot_id, payload, hash, created_at
		FROM %s
		WHERE id = $1
	`, c.collectionName)

	s, err := scanSnapshot(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("Load", "id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return s, nil
}

// Latest retrieves the most recent snapshot of a character in a run.
func (c *Client) Latest(ctx context.Context, runID, character string) (*storage.Snapshot, error) {
	whereClause, args := buildWhereClause(runID, character)
	query := fmt.Sprintf(`
		SELECT id, run_id, character_name, plot_id, payload, hash, created_at
		FROM %s
		%s
		ORDER BY plot_id DESC, id DESC
		LIMIT 1
	`, c.collectionName, whereClause)

	s, err := scanSnapshot(c.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("Latest", "run %q character %q", runID, character)
	}
	if err != nil {
		return nil, fmt.Errorf("Latest: %w", err)
	}
	return s, nil
}

// List retrieves snapshot headers.
func (c *Client) List(ctx context.Context, opts *storage.ListOptions) ([]*storage.Snapshot, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}
	whereClause, args := buildWhereClause(opts.RunID, opts.Character)

	query := fmt.Sprintf(`
		SELECT id, run_id, character_name, plot_id, hash, created_at
		FROM %s
		%s
		ORDER BY id
	`, c.collectionName, whereClause)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Snapshot
	for rows.Next() {
		s := &storage.Snapshot{}
		if err := rows.Scan(&s.ID, &s.RunID, &s.Character, &s.PlotID, &s.Hash, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

// DeleteRun deletes every snapshot of a run.
func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", c.collectionName)
	if _, err := c.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("DeleteRun: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

func scanSnapshot(row *sql.Row) (*storage.Snapshot, error) {
	s := &storage.Snapshot{}
	var payload string
	if err := row.Scan(&s.ID, &s.RunID, &s.Character, &s.PlotID, &payload, &s.Hash, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Payload = []byte(payload)
	return s, nil
}
