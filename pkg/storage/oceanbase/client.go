// Package oceanbase provides OceanBase implementation for snapshot storage.
//
// OceanBase speaks the MySQL protocol, so the go-sql-driver/mysql driver is used.
package oceanbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/storage"
)

// Client is an OceanBase client.
type Client struct {
	db             *sql.DB
	config         *Config
	collectionName string
}

// Config contains OceanBase configuration.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	CollectionName string
}

// NewClient creates a new OceanBase client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, core.NewSimError("NewOceanBaseClient", fmt.Errorf("%w: %v", core.ErrConnectionFailed, err))
	}

	collection := cfg.CollectionName
	if collection == "" {
		collection = "snapshots"
	}
	client := &Client{
		db:             db,
		config:         cfg,
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
			character_name VARCHAR(128) NOT NULL,
			plot_id INT NOT NULL,
			payload LONGTEXT NOT NULL,
			hash VARCHAR(32) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_run_character (run_id, character_name)
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Save inserts a snapshot.
func (c *Client) Save(ctx context.Context, snapshot *storage.Snapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, run_id, character_name, plot_id, payload, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
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
		snapshot.CreatedAt.UTC(),
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
		WHERE id = ?
	`, c.collectionName)

	s, err := scanSnapshot(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("Load", "id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return s, storage.Verify(s)
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
	return s, storage.Verify(s)
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
		query += " LIMIT ? OFFSET ?"
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
	query := fmt.Sprintf("DELETE FROM %s WHERE run_id = ?", c.collectionName)
	if _, err := c.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("DeleteRun: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}
