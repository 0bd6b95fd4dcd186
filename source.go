package livelist

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
)

// ColumnType is the declared type of a column in the backing source.
type ColumnType int

const (
	ColumnUnknown ColumnType = iota
	ColumnInteger
	ColumnString
	ColumnFloat
	ColumnBool
	ColumnTime
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInteger:
		return "integer"
	case ColumnString:
		return "string"
	case ColumnFloat:
		return "float"
	case ColumnBool:
		return "bool"
	case ColumnTime:
		return "time"
	default:
		return "unknown"
	}
}

// Schema describes the columns of a source and which one is the primary key.
type Schema struct {
	PrimaryKey string
	Columns    map[string]ColumnType
}

// PrimaryKeyType returns the declared type of the primary key column.
func (s Schema) PrimaryKeyType() ColumnType {
	if s.PrimaryKey == "" {
		return ColumnUnknown
	}
	return s.Columns[s.PrimaryKey]
}

// Listener receives change signals from a source.
type Listener interface {
	OnChange() error
}

// Source is an ordered, already materialised snapshot of the backing data plus
// a way to be told when it changes. Row indexes run from 0 to Len()-1.
type Source interface {
	Len() int
	Schema() Schema
	Int64(row int, column string) int64
	Text(row int, column string) string
	AddListener(l Listener)
	RemoveListener(l Listener)
}

// Record is one element of a SliceSource.
type Record map[string]interface{}

// SliceSource is an in-memory Source backed by a slice of records. Mutations
// notify listeners synchronously on the calling goroutine once the new
// contents are in place.
type SliceSource struct {
	mu        sync.RWMutex
	schema    Schema
	records   []Record
	listeners []Listener
}

// NewSliceSource creates a source with the given schema and initial records.
func NewSliceSource(schema Schema, records ...Record) *SliceSource {
	return &SliceSource{
		schema:  schema,
		records: append([]Record(nil), records...),
	}
}

func (s *SliceSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *SliceSource) Schema() Schema {
	return s.schema
}

func (s *SliceSource) Int64(row int, column string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch v := s.records[row][column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func (s *SliceSource) Text(row int, column string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch v := s.records[row][column].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Records returns a copy of the current records.
func (s *SliceSource) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.records...)
}

func (s *SliceSource) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *SliceSource) RemoveListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (s *SliceSource) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// Replace swaps the contents and notifies listeners.
func (s *SliceSource) Replace(records ...Record) error {
	return s.Mutate(func([]Record) []Record {
		return append([]Record(nil), records...)
	})
}

// Insert adds a record at pos and notifies listeners.
func (s *SliceSource) Insert(pos int, r Record) error {
	return s.Mutate(func(records []Record) []Record {
		if pos < 0 || pos > len(records) {
			pos = len(records)
		}
		out := make([]Record, 0, len(records)+1)
		out = append(out, records[:pos]...)
		out = append(out, r)
		return append(out, records[pos:]...)
	})
}

// Remove deletes the record at pos and notifies listeners.
func (s *SliceSource) Remove(pos int) error {
	if pos < 0 || pos >= s.Len() {
		return errors.Newf("remove: position %d outside [0, %d)", pos, s.Len())
	}
	return s.Mutate(func(records []Record) []Record {
		out := make([]Record, 0, len(records))
		out = append(out, records[:pos]...)
		return append(out, records[pos+1:]...)
	})
}

// Mutate replaces the records with the result of fn and notifies listeners.
// fn receives a copy it may modify.
func (s *SliceSource) Mutate(fn func(records []Record) []Record) error {
	s.mu.Lock()
	s.records = fn(append([]Record(nil), s.records...))
	s.mu.Unlock()

	return s.Notify()
}

// Notify delivers a change signal to every listener in registration order.
// Errors from listeners are combined and returned.
func (s *SliceSource) Notify() error {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	var err error
	for _, l := range listeners {
		err = errors.CombineErrors(err, l.OnChange())
	}
	return err
}
