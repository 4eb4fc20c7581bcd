package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"pairdb/internal/config"
	"pairdb/internal/logger"
	"pairdb/internal/metrics"
)

// Server accepts TCP connections and runs one Session per connection against
// a shared Executor.
type Server struct {
	cfg      *config.Config
	exec     Executor
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	active atomic.Int64
	wg     sync.WaitGroup
}

// NewServer creates a server. Call Start to bind and Close to stop.
func NewServer(cfg *config.Config, exec Executor) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		exec:   exec,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start binds the listen address and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("server closed")
	}
	if s.listener != nil {
		return fmt.Errorf("server already started")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.wg.Add(1)
	go s.acceptLoop(ln)
	logger.Info("pairdb listening on %s", ln.Addr())
	return nil
}

// ListenAndServe starts the server and blocks until ctx is done, then closes it.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("Accept error: %v", err)
			continue
		}

		if limit := s.cfg.MaxClients; limit > 0 && s.active.Load() >= int64(limit) {
			metrics.ConnectionsRejected.Inc()
			logger.Warn("Rejecting %s: %d clients connected", conn.RemoteAddr(), limit)
			conn.Close()
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.active.Add(1)
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsCurrent.Inc()
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		s.active.Add(-1)
		metrics.ConnectionsCurrent.Dec()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	id := uuid.NewString()
	logger.Info("Connection %s opened from %s", id, conn.RemoteAddr())

	sess := NewSession(id, conn, s.exec, SessionOptions{
		ReadBufferSize: s.cfg.ReadBufferSize,
		MaxLineLength:  s.cfg.MaxLineLength,
		IdleTimeout:    s.cfg.IdleTimeout,
	})
	err := sess.Run(s.ctx)
	switch {
	case err == nil, errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		logger.Info("Connection %s closed", id)
	default:
		logger.Warn("Connection %s closed: %v", id, err)
	}
}

// Addr returns the listener address after Start, or "" when not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ConnCount returns the number of open client connections.
func (s *Server) ConnCount() int64 {
	return s.active.Load()
}

// Close stops accepting, closes every open connection and waits for their
// goroutines to exit. The shared store is left untouched.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return err
}
