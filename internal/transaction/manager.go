package transaction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"pairdb/internal/logger"
	"pairdb/internal/metrics"
	"pairdb/internal/storage"
	"pairdb/internal/types"
)

// ErrStopped is returned for requests made after Stop.
var ErrStopped = errors.New("transaction manager stopped")

// Manager is the reactor: a single goroutine that owns the Store and runs
// every request to completion before taking the next one. Connection
// goroutines never touch the Store directly.
type Manager struct {
	Storage  *storage.Store
	Requests chan types.RequestContext

	quit  chan struct{}
	done  chan struct{}
	start sync.Once
	stop  sync.Once
}

// NewManager creates a manager for store with a request queue of queueLen.
func NewManager(store *storage.Store, queueLen int) *Manager {
	if queueLen < 0 {
		queueLen = 0
	}
	return &Manager{
		Storage:  store,
		Requests: make(chan types.RequestContext, queueLen),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the reactor goroutine. Calling it more than once is a no-op.
func (tm *Manager) Start() {
	tm.start.Do(func() {
		go tm.dispatch()
	})
}

// Stop terminates the reactor and waits for the in-flight request to finish.
// Requests still queued are failed with ErrStopped.
func (tm *Manager) Stop() {
	tm.stop.Do(func() {
		close(tm.quit)
	})
	tm.start.Do(func() {
		// Never started: nothing to wait for.
		close(tm.done)
	})
	<-tm.done
}

func (tm *Manager) dispatch() {
	defer close(tm.done)
	logger.Info("Transaction Manager: reactor started")
	for {
		select {
		case req := <-tm.Requests:
			tm.handle(req)
		case <-tm.quit:
			tm.drain()
			logger.Info("Transaction Manager: reactor stopped")
			return
		}
	}
}

func (tm *Manager) drain() {
	for {
		select {
		case req := <-tm.Requests:
			reply(req, types.ResponseContext{ReqID: req.ReqID, Error: ErrStopped})
		default:
			return
		}
	}
}

// handle runs inline on the reactor goroutine; that is what serializes
// Store access.
func (tm *Manager) handle(req types.RequestContext) {
	start := time.Now()
	resp := types.ResponseContext{ReqID: req.ReqID}
	logger.Debug("Transaction Manager: handling request %s (op: %s, lines: %d)", req.ReqID, req.Operation, len(req.Lines))

	switch req.Operation {
	case types.OpEvaluate:
		rows := make([]types.Row, 0, len(req.Lines))
		tm.Storage.EvaluateLines(req.Lines, func(r types.Row) {
			rows = append(rows, r)
		})
		resp.Rows = rows

	case types.OpStats:
		resp.Stats = tm.Storage.Stats()

	case types.OpExport:
		resp.Dump, resp.Error = tm.Storage.Export(req.Table)

	default:
		resp.Error = errors.New("operation not implemented")
	}

	metrics.ObserveEvaluate(req.Operation, time.Since(start))
	reply(req, resp)
}

func reply(req types.RequestContext, resp types.ResponseContext) {
	// RespChan is buffered; a requester that gave up never blocks the reactor.
	select {
	case req.RespChan <- resp:
	default:
	}
}

// Execute queues framed command lines and waits for the rows they produce.
func (tm *Manager) Execute(ctx context.Context, lines []string) ([]types.Row, error) {
	resp, err := tm.submit(ctx, types.RequestContext{Operation: types.OpEvaluate, Lines: lines})
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// Stats returns a snapshot of both tables taken on the reactor.
func (tm *Manager) Stats(ctx context.Context) ([]types.TableStats, error) {
	resp, err := tm.submit(ctx, types.RequestContext{Operation: types.OpStats})
	if err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

// Export returns the compressed contents of one table, read on the reactor.
func (tm *Manager) Export(ctx context.Context, table string) ([]byte, error) {
	resp, err := tm.submit(ctx, types.RequestContext{Operation: types.OpExport, Table: table})
	if err != nil {
		return nil, err
	}
	return resp.Dump, nil
}

func (tm *Manager) submit(ctx context.Context, req types.RequestContext) (types.ResponseContext, error) {
	req.ReqID = uuid.NewString()
	req.RespChan = make(chan types.ResponseContext, 1)

	select {
	case <-tm.quit:
		return types.ResponseContext{}, ErrStopped
	default:
	}

	select {
	case tm.Requests <- req:
	case <-ctx.Done():
		return types.ResponseContext{}, ctx.Err()
	case <-tm.quit:
		return types.ResponseContext{}, ErrStopped
	}

	select {
	case resp := <-req.RespChan:
		return resp, resp.Error
	case <-ctx.Done():
		return types.ResponseContext{}, ctx.Err()
	case <-tm.done:
		// The reactor may have answered just before exiting.
		select {
		case resp := <-req.RespChan:
			return resp, resp.Error
		default:
			return types.ResponseContext{}, ErrStopped
		}
	}
}
