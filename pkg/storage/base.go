// Package storage provides interfaces and types for snapshot storage backends.
//
// It defines the SnapshotStore interface that all storage implementations must satisfy.
// A snapshot is the JSON export of one character (memory graph plus psychological
// state) taken at a plot boundary, keyed by run id, character name and plot id.
package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/oceanbase/sociomind-go/pkg/core"
)

// Snapshot represents one persisted character snapshot.
type Snapshot struct {
	// ID is the unique identifier of the snapshot.
	ID int64

	// RunID identifies the simulation run.
	RunID string

	// Character is the name of the character the snapshot belongs to.
	Character string

	// PlotID is the plot the character had just finished when the snapshot was taken.
	PlotID int

	// Payload is the JSON encoded snapshot.
	Payload []byte

	// Hash is the MD5 hex digest of Payload. Save fills it in.
	Hash string

	// CreatedAt is when the snapshot was saved.
	CreatedAt time.Time
}

// SnapshotStore defines the interface for snapshot storage backends.
//
// All storage implementations (SQLite, PostgreSQL, OceanBase) must implement this interface.
type SnapshotStore interface {
	// Save inserts a snapshot. ID and RunID must be set.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load retrieves a snapshot by ID.
	//
	// Returns an error wrapping core.ErrSnapshotNotFound if no snapshot has the ID,
	// and core.ErrStorageOperation if the payload no longer matches its hash.
	Load(ctx context.Context, id int64) (*Snapshot, error)

	// Latest retrieves the most recent snapshot of a character in a run.
	// An empty character matches any character.
	Latest(ctx context.Context, runID, character string) (*Snapshot, error)

	// List retrieves snapshot headers, oldest first. Payloads are not loaded.
	List(ctx context.Context, opts *ListOptions) ([]*Snapshot, error)

	// DeleteRun deletes every snapshot of a run.
	DeleteRun(ctx context.Context, runID string) error

	// Close closes the store and releases resources.
	Close() error
}

// ListOptions contains options for List operations.
type ListOptions struct {
	// RunID filters results to a specific run.
	RunID string

	// Character filters results to a specific character.
	Character string

	// Limit sets the maximum number of results to return.
	Limit int

	// Offset sets the number of results to skip (for pagination).
	Offset int
}

// Checksum returns the MD5 hex digest of a payload.
func Checksum(payload []byte) string {
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// Verify checks a loaded snapshot against its hash.
func Verify(snapshot *Snapshot) error {
	if snapshot.Hash != "" && snapshot.Hash != Checksum(snapshot.Payload) {
		return core.NewSimError("Verify", fmt.Errorf("%w: snapshot %d payload does not match its hash",
			core.ErrStorageOperation, snapshot.ID))
	}
	return nil
}

// NotFound builds the error returned when no snapshot matches a lookup.
func NotFound(op string, format string, args ...any) error {
	return core.NewSimError(op, fmt.Errorf("%w: "+format, append([]any{core.ErrSnapshotNotFound}, args...)...))
}
