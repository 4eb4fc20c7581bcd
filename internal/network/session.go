package network

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"pairdb/internal/logger"
	"pairdb/internal/metrics"
	"pairdb/internal/protocol"
	"pairdb/internal/types"
)

// Executor runs framed command lines and returns the rows they produce.
// transaction.Manager is the production implementation.
type Executor interface {
	Execute(ctx context.Context, lines []string) ([]types.Row, error)
}

// State is a connection protocol state.
type State int

const (
	StateAwaitingGreetingWrite State = iota
	StateAwaitingInput
	StateEvaluating
	StateAwaitingRowWrite
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingGreetingWrite:
		return "awaiting-greeting-write"
	case StateAwaitingInput:
		return "awaiting-input"
	case StateEvaluating:
		return "evaluating"
	case StateAwaitingRowWrite:
		return "awaiting-row-write"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the protocol state machine for one client connection. Each
// step performs at most one read, one evaluation or one write, and the next
// step starts only after it returned, so output is strictly ordered. Every
// row and greeting is flushed to the connection as soon as it is written.
type Session struct {
	ID string

	conn   net.Conn
	exec   Executor
	framer *protocol.Framer
	bw     *bufio.Writer
	buf    []byte
	idle   time.Duration

	state    State
	lines    []string
	overflow bool
	rows     []types.Row
	next     int
	err      error
}

// SessionOptions tunes a Session.
type SessionOptions struct {
	ReadBufferSize int
	MaxLineLength  int
	IdleTimeout    time.Duration
}

// NewSession creates a session in StateAwaitingGreetingWrite.
func NewSession(id string, conn net.Conn, exec Executor, opts SessionOptions) *Session {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = 1024
	}
	return &Session{
		ID:     id,
		conn:   conn,
		exec:   exec,
		framer: protocol.NewFramer(opts.MaxLineLength),
		bw:     bufio.NewWriter(conn),
		buf:    make([]byte, opts.ReadBufferSize),
		idle:   opts.IdleTimeout,
		state:  StateAwaitingGreetingWrite,
	}
}

// State returns the current protocol state.
func (s *Session) State() State {
	return s.state
}

// Run drives the state machine until the connection fails or closes. It
// returns nil when the peer closed the connection cleanly.
func (s *Session) Run(ctx context.Context) error {
	for s.state != StateClosed {
		s.state = s.step(ctx)
	}
	if errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}

func (s *Session) step(ctx context.Context) State {
	switch s.state {
	case StateAwaitingGreetingWrite:
		if err := protocol.WriteGreeting(s.bw); err != nil {
			return s.fail(err)
		}
		if err := s.bw.Flush(); err != nil {
			return s.fail(err)
		}
		return StateAwaitingInput

	case StateAwaitingInput:
		return s.read()

	case StateEvaluating:
		rows, err := s.exec.Execute(ctx, s.lines)
		if err != nil {
			return s.fail(err)
		}
		if s.overflow {
			rows = append(rows, protocol.ErrorRow(protocol.ErrLineTooLong))
			metrics.ObserveCommand(types.CmdUnknown, protocol.ErrLineTooLong)
		}
		s.rows, s.next = rows, 0
		s.lines, s.overflow = nil, false
		return StateAwaitingRowWrite

	case StateAwaitingRowWrite:
		if s.next >= len(s.rows) {
			s.rows = nil
			return StateAwaitingGreetingWrite
		}
		row := s.rows[s.next]
		if err := protocol.WriteRow(s.bw, row); err != nil {
			return s.fail(err)
		}
		if err := s.bw.Flush(); err != nil {
			return s.fail(err)
		}
		if !row.Final {
			metrics.RowsStreamed.Inc()
		}
		s.next++
		return StateAwaitingRowWrite
	}
	return StateClosed
}

// read performs one transport read and feeds the framer. Reads that do not
// complete a line keep the session in StateAwaitingInput.
func (s *Session) read() State {
	if s.idle > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.idle)); err != nil {
			return s.fail(err)
		}
	}
	n, err := s.conn.Read(s.buf)
	if n == 0 {
		if err == nil {
			return StateAwaitingInput
		}
		return s.fail(err)
	}

	lines, framed, ferr := s.framer.Feed(s.buf[:n])
	if ferr != nil {
		logger.Warn("Session %s: %v, partial line discarded", s.ID, ferr)
		s.overflow = true
	}
	s.lines = append(s.lines, lines...)
	if !framed && !s.overflow {
		return StateAwaitingInput
	}
	logger.Debug("Session %s: %d lines framed", s.ID, len(s.lines))
	return StateEvaluating
}

func (s *Session) fail(err error) State {
	s.err = err
	return StateClosed
}
