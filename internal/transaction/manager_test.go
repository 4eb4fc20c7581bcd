package transaction

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairdb/internal/storage"
	"pairdb/internal/types"
)

func newStarted(t *testing.T) *Manager {
	t.Helper()
	tm := NewManager(storage.NewStore(), 16)
	tm.Start()
	t.Cleanup(tm.Stop)
	return tm
}

func TestManager_Execute(t *testing.T) {
	tm := newStarted(t)
	ctx := context.Background()

	rows, err := tm.Execute(ctx, []string{"INSERT A 5 p", "INSERT B 5 q", "INTERSECTION"})
	require.NoError(t, err)
	assert.Equal(t, []types.Row{
		{OK: true, Final: true},
		{OK: true, Final: true},
		{Payload: "5,p,q", OK: true},
		{OK: true, Final: true},
	}, rows)

	rows, err = tm.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestManager_Stats(t *testing.T) {
	tm := newStarted(t)
	ctx := context.Background()

	_, err := tm.Execute(ctx, []string{"INSERT A 1 a", "INSERT A 2 b"})
	require.NoError(t, err)

	stats, err := tm.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 2, stats[0].Rows)
	assert.Equal(t, 0, stats[1].Rows)
}

func TestManager_Export(t *testing.T) {
	tm := newStarted(t)
	ctx := context.Background()

	_, err := tm.Execute(ctx, []string{"INSERT B 2 two", "INSERT B 1 one"})
	require.NoError(t, err)

	data, err := tm.Export(ctx, "B")
	require.NoError(t, err)
	entries, err := storage.DecodeExport(data)
	require.NoError(t, err)
	assert.Equal(t, []storage.Entry{{Key: 1, Value: "one"}, {Key: 2, Value: "two"}}, entries)

	_, err = tm.Export(ctx, "C")
	assert.ErrorIs(t, err, storage.ErrTableNotFound)
}

func TestManager_SerializesConcurrentClients(t *testing.T) {
	tm := newStarted(t)
	ctx := context.Background()

	const clients, perClient = 8, 50
	var wg sync.WaitGroup
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				key := strconv.Itoa(c*perClient + i)
				rows, err := tm.Execute(ctx, []string{"INSERT A " + key + " a", "INSERT B " + key + " b"})
				assert.NoError(t, err)
				assert.Len(t, rows, 2)
				_, err = tm.Execute(ctx, []string{"INTERSECTION"})
				assert.NoError(t, err)
			}
		}(c)
	}
	wg.Wait()

	rows, err := tm.Execute(ctx, []string{"INTERSECTION"})
	require.NoError(t, err)
	assert.Len(t, rows, clients*perClient+1)

	rows, err = tm.Execute(ctx, []string{"SYMMETRIC_DIFFERENCE"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestManager_ContextCancelled(t *testing.T) {
	// Never started: the request can be queued but is never answered.
	tm := NewManager(storage.NewStore(), 1)
	defer tm.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tm.Execute(ctx, []string{"INTERSECTION"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestManager_Stopped(t *testing.T) {
	tm := NewManager(storage.NewStore(), 4)
	tm.Start()
	tm.Stop()
	tm.Stop()

	_, err := tm.Execute(context.Background(), []string{"INTERSECTION"})
	assert.ErrorIs(t, err, ErrStopped)
	_, err = tm.Stats(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
