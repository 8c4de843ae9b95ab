// Package sqlite provides SQLite implementation for snapshot storage.
//
// SQLite is a lightweight, file-based database suitable for local runs and
// replay. It is the default store. Payloads are stored as TEXT.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/storage"
)

// Client implements SnapshotStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// collectionName is the name of the table storing snapshots.
	collectionName string
}

// Config contains configuration for creating a SQLite SnapshotStore.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CollectionName is the name of the table to use.
	CollectionName string
}

// NewClient creates a new SQLite SnapshotStore client.
//
// Parameters:
//   - cfg: Configuration containing database path and table name
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, core.NewSimError("NewSQLiteClient", fmt.Errorf("%w: %v", core.ErrConnectionFailed, err))
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

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL,
			character_name TEXT NOT NULL,
			plot_id INTEGER NOT NULL,
			payload TEXT NOT NULL,
			hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_run_character ON %s(run_id, character_name)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Save inserts a snapshot into the SQLite database.
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

// List retrieves snapshot headers with optional filtering and pagination.
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
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
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

func scanSnapshot(row *sql.Row) (*storage.Snapshot, error) {
	s := &storage.Snapshot{}
	var payload string
	if err := row.Scan(&s.ID, &s.RunID, &s.Character, &s.PlotID, &payload, &s.Hash, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Payload = []byte(payload)
	return s, nil
}
