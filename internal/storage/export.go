package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

var exportEncoder, _ = zstd.NewWriter(nil)

// Create a reader that caches decompressors.
// For this operation type we supply a nil Reader.
var exportDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// Export returns the table contents as zstd-compressed "key,value" lines in
// ascending key order. Values never contain a newline since the protocol
// frames on it.
func (t *Table) Export() []byte {
	var raw []byte
	t.tree.Ascend(func(e Entry) bool {
		raw = strconv.AppendInt(raw, int64(e.Key), 10)
		raw = append(raw, ',')
		raw = append(raw, e.Value...)
		raw = append(raw, '\n')
		return true
	})
	return exportEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

// DecodeExport parses the output of Export.
func DecodeExport(data []byte) ([]Entry, error) {
	raw, err := exportDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress export: %w", err)
	}

	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 4096), len(raw)+1)
	for sc.Scan() {
		keyText, value, ok := strings.Cut(sc.Text(), ",")
		if !ok {
			return nil, fmt.Errorf("malformed export line %q", sc.Text())
		}
		key, err := strconv.Atoi(keyText)
		if err != nil {
			return nil, fmt.Errorf("malformed export key %q", keyText)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, sc.Err()
}
