package storage

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/btree"
	"github.com/zeebo/blake3"
)

const btreeDegree = 32

// Entry is one key/value pair of a Table.
type Entry struct {
	Key   int
	Value string
}

func entryLess(a, b Entry) bool {
	return a.Key < b.Key
}

// Table is an ordered int -> string collection. Iteration is ascending by
// key, which the merge-joins in join.go depend on.
//
// Table is not safe for concurrent use; the reactor serializes access.
type Table struct {
	name string
	tree *btree.BTreeG[Entry]
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{
		name: name,
		tree: btree.NewG[Entry](btreeDegree, entryLess),
	}
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Insert adds key with value. An existing key is left untouched and
// ErrDuplicateKey is returned, formatted as "duplicate <key>".
func (t *Table) Insert(key int, value string) error {
	if t.tree.Has(Entry{Key: key}) {
		return fmt.Errorf("%w %d", ErrDuplicateKey, key)
	}
	t.tree.ReplaceOrInsert(Entry{Key: key, Value: value})
	return nil
}

// Get returns the value stored under key.
func (t *Table) Get(key int) (string, bool) {
	e, ok := t.tree.Get(Entry{Key: key})
	return e.Value, ok
}

// Truncate removes every entry.
func (t *Table) Truncate() {
	t.tree.Clear(false)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return t.tree.Len()
}

// Entries returns the current contents in ascending key order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, t.tree.Len())
	t.tree.Ascend(func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Bounds returns the smallest and largest key. ok is false for an empty table.
func (t *Table) Bounds() (minKey, maxKey int, ok bool) {
	lo, ok := t.tree.Min()
	if !ok {
		return 0, 0, false
	}
	hi, _ := t.tree.Max()
	return lo.Key, hi.Key, true
}

// Digest returns the hex BLAKE3-256 of the ordered contents. Equal contents
// give equal digests regardless of insertion order. Each entry is hashed as a
// varint key and a length-prefixed value.
func (t *Table) Digest() string {
	h := blake3.New()
	var buf []byte
	t.tree.Ascend(func(e Entry) bool {
		buf = binary.AppendVarint(buf[:0], int64(e.Key))
		buf = binary.AppendUvarint(buf, uint64(len(e.Value)))
		buf = append(buf, e.Value...)
		h.Write(buf)
		return true
	})
	return hex.EncodeToString(h.Sum(nil))
}
