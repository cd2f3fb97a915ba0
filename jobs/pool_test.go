package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/errors"
)

// echoHandler completes with its payload's "msg" field, or fails when the
// payload sets "fail".
type echoHandler struct{}

func (echoHandler) Name() string { return "echo" }

func (echoHandler) Execute(ctx context.Context, job *Job) error {
	var p struct {
		Msg  string `json:"msg"`
		Fail bool   `json:"fail"`
	}
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}
	if p.Fail {
		return errors.New("echo failed on request")
	}
	job.Result = p.Msg
	return nil
}

func newTestPool(t *testing.T) (*Pool, *Store) {
	t.Helper()
	store := newTestStore(t)
	reg := NewRegistry()
	reg.Register(echoHandler{})
	pool := NewPool(store, reg, PoolConfig{Workers: 2, PollInterval: 10 * time.Millisecond}, zap.NewNop().Sugar())
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)
	return pool, store
}

func TestPoolRunsJobToCompletion(t *testing.T) {
	pool, store := newTestPool(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, "echo", map[string]interface{}{"msg": "done"})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	finished, err := pool.Wait(waitCtx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, finished.Status)
	assert.Equal(t, "done", finished.Result)
}

func TestPoolRecordsFailure(t *testing.T) {
	pool, store := newTestPool(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, "echo", map[string]interface{}{"fail": true})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	finished, err := pool.Wait(waitCtx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, finished.Status)
	assert.Contains(t, finished.Error, "echo failed")
}

func TestPoolFailsUnknownHandler(t *testing.T) {
	pool, store := newTestPool(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, "missing", map[string]interface{}{})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	finished, err := pool.Wait(waitCtx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, finished.Status)
	assert.Contains(t, finished.Error, "no handler registered")
}

func TestRegistryPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoHandler{})
	assert.Panics(t, func() { reg.Register(echoHandler{}) })
}

func TestWaitHonorsContext(t *testing.T) {
	store := newTestStore(t)
	pool := NewPool(store, NewRegistry(), DefaultPoolConfig(), zap.NewNop().Sugar())

	job, err := store.Enqueue(context.Background(), "never-runs", map[string]interface{}{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = pool.Wait(ctx, job.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
