package rulesmith

// Table is the uniform feature matrix assembled from per-file records.
// Columns follow the union schema in first-seen order; filenames and
// digests ride alongside rather than occupying columns. After BuildTable
// every cell holds a concrete value, absent fields having collapsed to the
// sentinel.
type Table struct {
	columns   []Field
	filenames []string
	digests   []string
	rows      [][]Value
	labels    []int
}

// BuildTable assembles records into a table. The column schema is the
// union of fields present across all records, ordered by first appearance.
// Absent cells are sentinel-filled, resource-indexed columns first.
// Returns ErrNoInput when records is empty.
func BuildTable(records []*Record) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrNoInput
	}

	var seen [fieldCount]bool
	columns := make([]Field, 0, fieldCount)
	for _, rec := range records {
		for _, f := range rec.Fields() {
			if !seen[f] {
				seen[f] = true
				columns = append(columns, f)
			}
		}
	}

	t := &Table{
		columns:   columns,
		filenames: make([]string, len(records)),
		digests:   make([]string, len(records)),
		rows:      make([][]Value, len(records)),
	}
	for i, rec := range records {
		t.filenames[i] = rec.Filename
		t.digests[i] = rec.Digest
		row := make([]Value, len(columns))
		for ci, f := range columns {
			if v, ok := rec.Get(f); ok {
				row[ci] = v
			}
		}
		t.rows[i] = row
	}

	t.fillWhere(Field.ResourceIndexed)
	t.fillWhere(func(f Field) bool { return !f.ResourceIndexed() })
	return t, nil
}

// fillWhere collapses absent cells to the sentinel for matching columns.
// Filling a complete table is a no-op.
func (t *Table) fillWhere(match func(Field) bool) {
	for ci, f := range t.columns {
		if !match(f) {
			continue
		}
		for _, row := range t.rows {
			if row[ci].Absent() {
				row[ci] = SentinelValue()
			}
		}
	}
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.rows) }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.columns) }

// Columns returns the column schema in order.
func (t *Table) Columns() []Field {
	out := make([]Field, len(t.columns))
	copy(out, t.columns)
	return out
}

// Filename returns the filename of row i.
func (t *Table) Filename(i int) string { return t.filenames[i] }

// Digest returns the content digest of row i, if one was computed.
func (t *Table) Digest(i int) string { return t.digests[i] }

// At returns the cell at row i, column ci.
func (t *Table) At(i, ci int) Value { return t.rows[i][ci] }

// ColumnIndex returns the position of a field in the schema, or -1.
func (t *Table) ColumnIndex(f Field) int {
	for ci, c := range t.columns {
		if c == f {
			return ci
		}
	}
	return -1
}

// SetLabels attaches one cluster label per row. The noise label -1 marks
// rows excluded from synthesis. This is the table's only post-build
// mutation.
func (t *Table) SetLabels(labels []int) error {
	if len(labels) != len(t.rows) {
		return ErrLabelMismatch
	}
	t.labels = make([]int, len(labels))
	copy(t.labels, labels)
	return nil
}

// Labels returns the attached labels, or nil before SetLabels.
func (t *Table) Labels() []int {
	if t.labels == nil {
		return nil
	}
	out := make([]int, len(t.labels))
	copy(out, t.labels)
	return out
}

// Matrix projects the table onto its numeric columns, returning the row
// matrix for clustering and the fields backing each matrix column. String
// columns are excluded; sentinel cells contribute -1.
func (t *Table) Matrix() ([][]float64, []Field) {
	numeric := make([]int, 0, len(t.columns))
	fields := make([]Field, 0, len(t.columns))
	for ci := range t.columns {
		if t.columnNumeric(ci) {
			numeric = append(numeric, ci)
			fields = append(fields, t.columns[ci])
		}
	}

	m := make([][]float64, len(t.rows))
	for i, row := range t.rows {
		v := make([]float64, len(numeric))
		for j, ci := range numeric {
			f, _ := row[ci].Float64()
			v[j] = f
		}
		m[i] = v
	}
	return m, fields
}

func (t *Table) columnNumeric(ci int) bool {
	for _, row := range t.rows {
		if row[ci].Kind() == KindString {
			return false
		}
	}
	return true
}

// view creates a table sharing this table's schema with a subset of rows.
func (t *Table) view(rowIdx []int) *Table {
	sub := &Table{
		columns:   t.columns,
		filenames: make([]string, len(rowIdx)),
		digests:   make([]string, len(rowIdx)),
		rows:      make([][]Value, len(rowIdx)),
	}
	for i, ri := range rowIdx {
		sub.filenames[i] = t.filenames[ri]
		sub.digests[i] = t.digests[ri]
		sub.rows[i] = t.rows[ri]
	}
	return sub
}
