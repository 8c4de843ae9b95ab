package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/sociomind-go/pkg/core"
	"github.com/oceanbase/sociomind-go/pkg/storage"
	"github.com/oceanbase/sociomind-go/pkg/storage/postgres"
)

// setupPostgresTest connects to the server named by POSTGRES_TEST_HOST and
// skips the test when it is unset.
func setupPostgresTest(t *testing.T) storage.SnapshotStore {
	t.Helper()
	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		t.Skip("POSTGRES_TEST_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("POSTGRES_TEST_PORT"))
	if port == 0 {
		port = 5432
	}

	store, err := postgres.NewClient(&postgres.Config{
		Host:           host,
		Port:           port,
		User:           os.Getenv("POSTGRES_TEST_USER"),
		Password:       os.Getenv("POSTGRES_TEST_PASSWORD"),
		DBName:         os.Getenv("POSTGRES_TEST_DATABASE"),
		CollectionName: fmt.Sprintf("snapshots_test_%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresClient_SaveLatestList(t *testing.T) {
	store := setupPostgresTest(t)
	ctx := context.Background()
	run := fmt.Sprintf("run-%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = store.DeleteRun(context.Background(), run) })

	for _, s := range []*storage.Snapshot{
		{ID: 11, RunID: run, Character: "Xiaotao", PlotID: 0, Payload: []byte(`{"p":0}`)},
		{ID: 12, RunID: run, Character: "Zhixu", PlotID: 0, Payload: []byte(`{"p":0}`)},
		{ID: 13, RunID: run, Character: "Xiaotao", PlotID: 1, Payload: []byte(`{"p":1}`)},
	} {
		require.NoError(t, store.Save(ctx, s))
	}

	loaded, err := store.Load(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "Zhixu", loaded.Character)
	assert.JSONEq(t, `{"p":0}`, string(loaded.Payload))

	latest, err := store.Latest(ctx, run, "Xiaotao")
	require.NoError(t, err)
	assert.Equal(t, int64(13), latest.ID)
	assert.Equal(t, 1, latest.PlotID)

	headers, err := store.List(ctx, &storage.ListOptions{RunID: run, Character: "Xiaotao"})
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, int64(11), headers[0].ID)

	require.NoError(t, store.DeleteRun(ctx, run))
	_, err = store.Latest(ctx, run, "Xiaotao")
	assert.ErrorIs(t, err, core.ErrSnapshotNotFound)
}

func TestPostgresClient_ConnectionFailure(t *testing.T) {
	_, err := postgres.NewClient(&postgres.Config{
		Host:   "127.0.0.1",
		Port:   1,
		User:   "nobody",
		DBName: "nothing",
	})
	assert.ErrorIs(t, err, core.ErrConnectionFailed)
}
