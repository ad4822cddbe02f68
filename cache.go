package rulesmith

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/snappy"
	"golang.org/x/crypto/blake2b"
)

// hashReader returns the hex BLAKE2b-256 digest of a reader's contents.
func hashReader(r io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TableCache stores snappy-compressed snapshots of built feature tables,
// keyed by a digest of the input corpus, so repeated runs over an
// unchanged directory skip re-parsing.
type TableCache struct {
	dir string
}

// NewTableCache creates a cache rooted at dir.
func NewTableCache(dir string) (*TableCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &TableCache{dir: dir}, nil
}

// CorpusKey derives the cache key for a set of input files from their
// paths, sizes, and modification times. Any change to the set or to a
// member invalidates the key.
func CorpusKey(paths []string) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)
	for _, p := range sorted {
		info, err := os.Stat(p)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00", filepath.Base(p), info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *TableCache) path(key string) string {
	return filepath.Join(c.dir, key+".table.snappy")
}

// Load returns the cached table for a corpus key, or false when no usable
// snapshot exists. A corrupt snapshot counts as a miss.
func (c *TableCache) Load(key string) (*Table, bool) {
	compressed, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		slog.Warn("table cache snapshot corrupt, ignoring", "key", key, "err", err)
		return nil, false
	}
	t, err := decodeTableSnapshot(raw)
	if err != nil {
		slog.Warn("table cache snapshot unreadable, ignoring", "key", key, "err", err)
		return nil, false
	}
	return t, true
}

// Store writes a snapshot of the table under the corpus key.
func (c *TableCache) Store(key string, t *Table) error {
	raw, err := encodeTableSnapshot(t)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(key), snappy.Encode(nil, raw), 0o644)
}

// tableSnapshot is the serialized form of a Table. Labels are not
// snapshotted: clustering is rerun per invocation.
type tableSnapshot struct {
	Columns   []string       `json:"columns"`
	Filenames []string       `json:"filenames"`
	Digests   []string       `json:"digests"`
	Rows      [][]cellSample `json:"rows"`
}

type cellSample struct {
	K Kind    `json:"k"`
	N int64   `json:"n,omitempty"`
	F float64 `json:"f,omitempty"`
	S string  `json:"s,omitempty"`
}

func encodeTableSnapshot(t *Table) ([]byte, error) {
	snap := tableSnapshot{
		Columns:   make([]string, len(t.columns)),
		Filenames: t.filenames,
		Digests:   t.digests,
		Rows:      make([][]cellSample, len(t.rows)),
	}
	for i, f := range t.columns {
		snap.Columns[i] = f.Name()
	}
	for i, row := range t.rows {
		cells := make([]cellSample, len(row))
		for j, v := range row {
			cells[j] = cellSample{K: v.kind, N: v.n, F: v.f, S: v.s}
		}
		snap.Rows[i] = cells
	}
	return json.Marshal(snap)
}

func decodeTableSnapshot(raw []byte) (*Table, error) {
	var snap tableSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	if len(snap.Filenames) != len(snap.Rows) || len(snap.Digests) != len(snap.Rows) {
		return nil, fmt.Errorf("snapshot row bookkeeping mismatch")
	}

	columns := make([]Field, len(snap.Columns))
	for i, name := range snap.Columns {
		f, ok := FieldByName(name)
		if !ok {
			return nil, fmt.Errorf("snapshot column %q not in catalog", name)
		}
		columns[i] = f
	}

	t := &Table{
		columns:   columns,
		filenames: snap.Filenames,
		digests:   snap.Digests,
		rows:      make([][]Value, len(snap.Rows)),
	}
	for i, cells := range snap.Rows {
		if len(cells) != len(columns) {
			return nil, fmt.Errorf("snapshot row %d has %d cells, want %d", i, len(cells), len(columns))
		}
		row := make([]Value, len(cells))
		for j, c := range cells {
			row[j] = Value{kind: c.K, n: c.N, f: c.F, s: c.S}
		}
		t.rows[i] = row
	}
	return t, nil
}
