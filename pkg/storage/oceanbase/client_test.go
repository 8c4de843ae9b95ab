package oceanbase_test

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
	"github.com/oceanbase/sociomind-go/pkg/storage/oceanbase"
)

func TestOceanBaseClient_SaveLatest(t *testing.T) {
	host := os.Getenv("OCEANBASE_TEST_HOST")
	if host == "" {
		t.Skip("OCEANBASE_TEST_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("OCEANBASE_TEST_PORT"))
	if port == 0 {
		port = 2881
	}
	store, err := oceanbase.NewClient(&oceanbase.Config{
		Host:           host,
		Port:           port,
		User:           os.Getenv("OCEANBASE_TEST_USER"),
		Password:       os.Getenv("OCEANBASE_TEST_PASSWORD"),
		DBName:         os.Getenv("OCEANBASE_TEST_DATABASE"),
		CollectionName: "snapshots_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	run := fmt.Sprintf("run-%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = store.DeleteRun(context.Background(), run) })

	base := time.Now().UnixNano()
	require.NoError(t, store.Save(ctx, &storage.Snapshot{ID: base, RunID: run, Character: "Xiaotao", PlotID: 0, Payload: []byte(`{"p":0}`)}))
	require.NoError(t, store.Save(ctx, &storage.Snapshot{ID: base + 1, RunID: run, Character: "Xiaotao", PlotID: 1, Payload: []byte(`{"p":1}`)}))

	latest, err := store.Latest(ctx, run, "Xiaotao")
	require.NoError(t, err)
	assert.Equal(t, base+1, latest.ID)
	assert.JSONEq(t, `{"p":1}`, string(latest.Payload))

	_, err = store.Latest(ctx, run, "Zhixu")
	assert.ErrorIs(t, err, core.ErrSnapshotNotFound)
}

func TestOceanBaseClient_ConnectionFailure(t *testing.T) {
	_, err := oceanbase.NewClient(&oceanbase.Config{Host: "127.0.0.1", Port: 1, User: "nobody", DBName: "nothing"})
	assert.ErrorIs(t, err, core.ErrConnectionFailed)
}
