// Package rows flattens a backing sequence that is pre-sorted by a grouping key
// into a flat row list with a header row at every group boundary.
package rows

// Row describes one position of the flattened list.
type Row struct {
	// IsData is true for rows backed by an element of the source.
	IsData bool
	// DataIndex is the index into the backing sequence, -1 for header rows.
	DataIndex int
	// SectionHeaderIndex is the flat position of the header that owns this row.
	// Header rows point at themselves.
	SectionHeaderIndex int
	// Header is the label of a header row, empty for data rows.
	Header string
}

// IsHeader reports whether the row is a section header.
func (r Row) IsHeader() bool {
	return !r.IsData
}

// KeyFunc returns the grouping key of backing element i, read as text.
type KeyFunc func(i int) string

// LabelFunc turns a grouping key into the label shown on the header row.
type LabelFunc func(key string) string

// Flatten walks the n backing elements once and emits a header row whenever the
// label of an element differs from the label of the previous one. The backing
// sequence is never re-sorted, so a label that reappears after a different one
// opens a second section with the same label.
func Flatten(n int, keyAt KeyFunc, label LabelFunc) []Row {
	if n <= 0 {
		return []Row{}
	}

	flat := make([]Row, 0, n+n/4+1)
	var (
		lastLabel   string
		started     bool
		headerCount int
		headerPos   int
	)

	for i := 0; i < n; i++ {
		current := label(keyAt(i))
		if !started || current != lastLabel {
			headerPos = i + headerCount
			lastLabel = current
			started = true
			headerCount++

			flat = append(flat, Row{
				IsData:             false,
				DataIndex:          -1,
				SectionHeaderIndex: headerPos,
				Header:             current,
			})
		}

		flat = append(flat, Row{
			IsData:             true,
			DataIndex:          i,
			SectionHeaderIndex: headerPos,
		})
	}

	return flat
}

// Count returns the number of header and data rows in flat.
func Count(flat []Row) (headers, data int) {
	for _, r := range flat {
		if r.IsData {
			data++
		} else {
			headers++
		}
	}
	return headers, data
}

// LastData returns the backing index of the last data row in flat.
func LastData(flat []Row) (int, bool) {
	for i := len(flat) - 1; i >= 0; i-- {
		if flat[i].IsData {
			return flat[i].DataIndex, true
		}
	}
	return -1, false
}
