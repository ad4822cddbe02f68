package rulesmith

import "fmt"

// Record holds the catalog fields extracted from one file. A record is
// produced by the parser and read-only afterwards. Fields the parser could
// not obtain are absent, never zero-filled; sentinel filling happens when
// records are assembled into a Table.
type Record struct {
	// Filename is the base name of the parsed file. Always present.
	Filename string

	// Digest is the hex BLAKE2b-256 digest of the file contents, when it
	// could be computed.
	Digest string

	// Warnings lists recoverable parse problems in discovery order. A
	// non-empty list means the record is partial.
	Warnings []string

	cells [fieldCount]Value
}

// NewRecord creates an empty record for the named file.
func NewRecord(filename string) *Record {
	return &Record{Filename: filename}
}

func (r *Record) set(f Field, v Value) {
	if f < fieldCount {
		r.cells[f] = v
	}
}

func (r *Record) setInt(f Field, v int64) {
	r.set(f, IntValue(v))
}

func (r *Record) warn(stage ParseStage, format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", stage, fmt.Sprintf(format, args...)))
}

// Get returns the value of a field and whether it is present.
func (r *Record) Get(f Field) (Value, bool) {
	if f >= fieldCount || r.cells[f].Absent() {
		return Value{}, false
	}
	return r.cells[f], true
}

// Has reports whether the field was extracted.
func (r *Record) Has(f Field) bool {
	return f < fieldCount && !r.cells[f].Absent()
}

// Fields returns the present fields in catalog order.
func (r *Record) Fields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		if !r.cells[f].Absent() {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of present fields, not counting the filename.
func (r *Record) Len() int {
	n := 0
	for f := Field(0); f < fieldCount; f++ {
		if !r.cells[f].Absent() {
			n++
		}
	}
	return n
}
