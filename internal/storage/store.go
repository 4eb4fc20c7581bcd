package storage

import (
	"strconv"

	"pairdb/internal/protocol"
	"pairdb/internal/types"
)

// Names of the two tables every Store owns.
const (
	TableA = "A"
	TableB = "B"
)

// Sink receives the rows produced for a command, in order.
type Sink func(types.Row)

// Store holds tables A and B and evaluates protocol commands against them.
//
// Store does no locking. All calls must be serialized by the caller; in the
// server this is the transaction manager's reactor goroutine.
type Store struct {
	tables   map[string]*Table
	commands map[string]types.CommandKind

	// OnCommand, if set, is called once per evaluated line with the resolved
	// command kind (CmdUnknown for an unrecognized keyword) and the error
	// reported to the client, or nil.
	OnCommand func(kind types.CommandKind, err error)
}

// NewStore creates a Store with empty tables A and B.
func NewStore() *Store {
	return &Store{
		tables: map[string]*Table{
			TableA: NewTable(TableA),
			TableB: NewTable(TableB),
		},
		commands: map[string]types.CommandKind{
			types.CmdInsert.String():              types.CmdInsert,
			types.CmdTruncate.String():            types.CmdTruncate,
			types.CmdIntersection.String():        types.CmdIntersection,
			types.CmdSymmetricDifference.String(): types.CmdSymmetricDifference,
		},
	}
}

// Table resolves a table by name.
func (s *Store) Table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return t, nil
}

// Tables returns the tables in name order.
func (s *Store) Tables() []*Table {
	return []*Table{s.tables[TableA], s.tables[TableB]}
}

// Stats summarizes both tables.
func (s *Store) Stats() []types.TableStats {
	stats := make([]types.TableStats, 0, len(s.tables))
	for _, t := range s.Tables() {
		st := types.TableStats{
			Name:   t.Name(),
			Rows:   t.Len(),
			Digest: t.Digest(),
		}
		if lo, hi, ok := t.Bounds(); ok {
			st.MinKey, st.MaxKey = &lo, &hi
		}
		stats = append(stats, st)
	}
	return stats
}

// Export returns the compressed contents of the named table. See Table.Export.
func (s *Store) Export(name string) ([]byte, error) {
	t, err := s.Table(name)
	if err != nil {
		return nil, err
	}
	return t.Export(), nil
}

// Evaluate splits data into lines and evaluates each one. See EvaluateLines.
func (s *Store) Evaluate(data []byte, sink Sink) {
	s.EvaluateLines(protocol.SplitLines(data), sink)
}

// EvaluateLines evaluates already-trimmed, non-empty command lines in order.
// Every line is answered independently: it produces zero or more non-final
// rows followed by exactly one final row, and a failing line does not stop
// the ones after it.
func (s *Store) EvaluateLines(lines []string, sink Sink) {
	for _, line := range lines {
		kind, err := s.execute(protocol.SplitTokens(line), sink)
		if err != nil {
			sink(protocol.ErrorRow(err))
		}
		if s.OnCommand != nil {
			s.OnCommand(kind, err)
		}
	}
}

// execute validates and runs a single command. On success it has already
// written the final row; on error the caller reports it.
func (s *Store) execute(tokens []string, sink Sink) (types.CommandKind, error) {
	kind, ok := s.commands[tokens[0]]
	if !ok {
		return types.CmdUnknown, ErrUnsupportedCommand
	}
	if len(tokens) != kind.Arity() {
		return kind, ErrWrongFormat
	}

	switch kind {
	case types.CmdInsert:
		table, err := s.Table(tokens[1])
		if err != nil {
			return kind, err
		}
		key, err := strconv.Atoi(tokens[2])
		if err != nil {
			return kind, ErrWrongFormat
		}
		if err := table.Insert(key, tokens[3]); err != nil {
			return kind, err
		}
		sink(okRow())

	case types.CmdTruncate:
		table, err := s.Table(tokens[1])
		if err != nil {
			return kind, err
		}
		table.Truncate()
		sink(okRow())

	case types.CmdIntersection:
		s.Intersection(sink)

	case types.CmdSymmetricDifference:
		s.SymmetricDifference(sink)
	}
	return kind, nil
}

// Intersection streams one row per key present in both tables, ascending,
// then the final OK row.
func (s *Store) Intersection(sink Sink) {
	intersect(s.tables[TableA].Entries(), s.tables[TableB].Entries(), streamTo(sink))
	sink(okRow())
}

// SymmetricDifference streams one row per key present in exactly one table,
// ascending, then the final OK row.
func (s *Store) SymmetricDifference(sink Sink) {
	symmetricDifference(s.tables[TableA].Entries(), s.tables[TableB].Entries(), streamTo(sink))
	sink(okRow())
}

func streamTo(sink Sink) func(string) {
	return func(payload string) {
		sink(types.Row{Payload: payload, OK: true})
	}
}

func okRow() types.Row {
	return types.Row{OK: true, Final: true}
}
