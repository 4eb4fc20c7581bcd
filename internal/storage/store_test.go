package storage

import (
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairdb/internal/types"
)

// run evaluates input against s and renders every row the way the wire
// protocol would, without the "< " prefix.
func run(s *Store, input string) []string {
	var out []string
	s.Evaluate([]byte(input), func(r types.Row) {
		switch {
		case !r.Final:
			out = append(out, r.Payload)
		case r.OK:
			out = append(out, "OK")
		default:
			out = append(out, "ERR "+r.Payload)
		}
	})
	return out
}

func seedExample(t *testing.T, s *Store) {
	t.Helper()
	out := run(s, "INSERT A 1 a\nINSERT A 2 b\nINSERT A 3 c\nINSERT B 2 x\nINSERT B 3 y\nINSERT B 4 z\n")
	require.Equal(t, []string{"OK", "OK", "OK", "OK", "OK", "OK"}, out)
}

func TestStore_InsertAndDuplicate(t *testing.T) {
	s := NewStore()

	assert.Equal(t, []string{"OK"}, run(s, "INSERT A 1 x\n"))
	assert.Equal(t, []string{"ERR duplicate 1"}, run(s, "INSERT A 1 y\n"))

	a, err := s.Table(TableA)
	require.NoError(t, err)
	v, ok := a.Get(1)
	require.True(t, ok)
	assert.Equal(t, "x", v)
	assert.Equal(t, 1, a.Len())
}

func TestStore_DuplicateErrorIs(t *testing.T) {
	tbl := NewTable(TableA)
	require.NoError(t, tbl.Insert(7, "v"))
	err := tbl.Insert(7, "w")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKey))
	assert.Equal(t, "duplicate 7", err.Error())
}

func TestStore_TruncateClears(t *testing.T) {
	s := NewStore()
	seedExample(t, s)

	assert.Equal(t, []string{"OK"}, run(s, "TRUNCATE A\n"))
	assert.Equal(t, []string{"OK"}, run(s, "INTERSECTION\n"))

	// Truncating an empty table is still OK.
	assert.Equal(t, []string{"OK"}, run(s, "TRUNCATE A\n"))
	a, _ := s.Table(TableA)
	assert.Zero(t, a.Len())
}

func TestStore_Intersection(t *testing.T) {
	s := NewStore()
	seedExample(t, s)
	assert.Equal(t, []string{"2,b,x", "3,c,y", "OK"}, run(s, "INTERSECTION\n"))
}

func TestStore_SymmetricDifference(t *testing.T) {
	s := NewStore()
	seedExample(t, s)
	assert.Equal(t, []string{"1,a,", "4,,z", "OK"}, run(s, "SYMMETRIC_DIFFERENCE\n"))
}

func TestStore_SymmetricDifferenceDrainsEitherSide(t *testing.T) {
	s := NewStore()
	run(s, "INSERT A 1 a\nINSERT B 5 e\nINSERT B 6 f\nINSERT B 7 g\n")
	assert.Equal(t, []string{"1,a,", "5,,e", "6,,f", "7,,g", "OK"}, run(s, "SYMMETRIC_DIFFERENCE\n"))

	s = NewStore()
	run(s, "INSERT B 1 a\nINSERT A 5 e\nINSERT A 6 f\n")
	assert.Equal(t, []string{"1,,a", "5,e,", "6,f,", "OK"}, run(s, "SYMMETRIC_DIFFERENCE\n"))

	s = NewStore()
	run(s, "INSERT A 3 c\n")
	assert.Equal(t, []string{"3,c,", "OK"}, run(s, "SYMMETRIC_DIFFERENCE\n"))
	assert.Equal(t, []string{"OK"}, run(s, "INTERSECTION\n"))
}

func TestStore_EmptyTables(t *testing.T) {
	s := NewStore()
	assert.Equal(t, []string{"OK"}, run(s, "INTERSECTION\n"))
	assert.Equal(t, []string{"OK"}, run(s, "SYMMETRIC_DIFFERENCE\n"))
}

func TestStore_MalformedInput(t *testing.T) {
	s := NewStore()
	cases := map[string]string{
		"INSERT A 1":               "ERR Wrong format",
		"INSERT A 1 x y":           "ERR Wrong format",
		"INSERT A one x":           "ERR Wrong format",
		"INSERT A 1  x":            "ERR Wrong format",
		"TRUNCATE":                 "ERR Wrong format",
		"INTERSECTION A":           "ERR Wrong format",
		"SYMMETRIC_DIFFERENCE A B": "ERR Wrong format",
		"FOO":                      "ERR Unsupported command",
		"insert A 1 x":             "ERR Unsupported command",
		"INSERT Z 1 x":             "ERR Table doesn't exists",
		"TRUNCATE Z":               "ERR Table doesn't exists",
	}
	for in, want := range cases {
		assert.Equal(t, []string{want}, run(s, in+"\n"), in)
	}
}

func TestStore_MultiCommandBuffer(t *testing.T) {
	s := NewStore()
	out := run(s, "INSERT A 5 p\nINSERT B 5 q\nINTERSECTION\n")
	assert.Equal(t, []string{"OK", "OK", "5,p,q", "OK"}, out)
}

func TestStore_BadLineDoesNotAbortBatch(t *testing.T) {
	s := NewStore()
	out := run(s, "FOO\nINSERT A 1\n\n   \nINSERT A 1 x\r\nINSERT A 1 y\n")
	assert.Equal(t, []string{"ERR Unsupported command", "ERR Wrong format", "OK", "ERR duplicate 1"}, out)
}

func TestStore_CanonicalKeys(t *testing.T) {
	s := NewStore()
	assert.Equal(t, []string{"OK", "ERR duplicate 7", "OK"}, run(s, "INSERT A 007 x\nINSERT A +7 y\nINSERT B -3 n\n"))
	assert.Equal(t, []string{"-3,,n", "7,x,", "OK"}, run(s, "SYMMETRIC_DIFFERENCE\n"))
}

func TestStore_OutputAscendingForAnyInsertOrder(t *testing.T) {
	s := NewStore()
	rng := rand.New(rand.NewSource(42))
	var b strings.Builder
	for _, k := range rng.Perm(200) {
		b.WriteString("INSERT A " + strconv.Itoa(k) + " a\n")
	}
	for _, k := range rng.Perm(200) {
		if k%3 == 0 {
			b.WriteString("INSERT B " + strconv.Itoa(k+100) + " b\n")
		}
	}
	run(s, b.String())

	for _, cmd := range []string{"INTERSECTION\n", "SYMMETRIC_DIFFERENCE\n"} {
		out := run(s, cmd)
		require.Equal(t, "OK", out[len(out)-1])
		prev := -1 << 62
		for _, row := range out[:len(out)-1] {
			k, err := strconv.Atoi(row[:strings.IndexByte(row, ',')])
			require.NoError(t, err)
			assert.Greater(t, k, prev, cmd)
			prev = k
		}
	}
}

func TestStore_OnCommand(t *testing.T) {
	s := NewStore()
	type call struct {
		kind types.CommandKind
		err  error
	}
	var calls []call
	s.OnCommand = func(kind types.CommandKind, err error) {
		calls = append(calls, call{kind, err})
	}

	run(s, "INSERT A 1 x\nINSERT A 1 x\nBAR\nINTERSECTION\nTRUNCATE Q\n")

	require.Len(t, calls, 5)
	assert.Equal(t, types.CmdInsert, calls[0].kind)
	assert.NoError(t, calls[0].err)
	assert.ErrorIs(t, calls[1].err, ErrDuplicateKey)
	assert.Equal(t, types.CmdUnknown, calls[2].kind)
	assert.ErrorIs(t, calls[2].err, ErrUnsupportedCommand)
	assert.Equal(t, types.CmdIntersection, calls[3].kind)
	assert.ErrorIs(t, calls[4].err, ErrTableNotFound)
}

func TestStore_Stats(t *testing.T) {
	s := NewStore()
	seedExample(t, s)

	stats := s.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "A", stats[0].Name)
	assert.Equal(t, 3, stats[0].Rows)
	require.NotNil(t, stats[0].MinKey)
	assert.Equal(t, 1, *stats[0].MinKey)
	assert.Equal(t, 3, *stats[0].MaxKey)
	assert.Equal(t, "B", stats[1].Name)
	assert.Equal(t, 4, *stats[1].MaxKey)

	run(s, "TRUNCATE B\n")
	stats = s.Stats()
	assert.Zero(t, stats[1].Rows)
	assert.Nil(t, stats[1].MinKey)
}
