// Package identity derives a stable, comparable identity for every visible row
// so that two snapshots of the same list can be diffed.
package identity

import (
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/livefir/livelist/internal/rows"
)

// Kind tags the variant held by an Identity.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInteger
	KindString
	KindHeader
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindHeader:
		return "header"
	default:
		return "unknown"
	}
}

// ErrUnknownKind is returned when an extractor is asked for a kind it cannot read.
var ErrUnknownKind = errors.New("unknown identity kind")

// Identity is a tagged union of an integer primary key, a string primary key or
// a header label. Two identities are equal (==) only when both the variant and
// the value match.
type Identity struct {
	kind Kind
	num  int64
	text string
}

// Int returns the identity of a row keyed by an integer primary key.
func Int(v int64) Identity {
	return Identity{kind: KindInteger, num: v}
}

// String returns the identity of a row keyed by a string primary key.
func String(v string) Identity {
	return Identity{kind: KindString, text: v}
}

// Header returns the identity of a section header row.
func Header(label string) Identity {
	return Identity{kind: KindHeader, text: label}
}

// Kind returns the variant of the identity.
func (id Identity) Kind() Kind {
	return id.kind
}

// Int64 returns the integer key, if the identity holds one.
func (id Identity) Int64() (int64, bool) {
	return id.num, id.kind == KindInteger
}

// Text returns the string key or the header label.
func (id Identity) Text() (string, bool) {
	return id.text, id.kind == KindString || id.kind == KindHeader
}

func (id Identity) String() string {
	switch id.kind {
	case KindInteger:
		return strconv.FormatInt(id.num, 10)
	case KindString:
		return strconv.Quote(id.text)
	case KindHeader:
		return "header(" + strconv.Quote(id.text) + ")"
	default:
		return "<none>"
	}
}

// Reader reads typed column values of the backing sequence.
type Reader interface {
	Int64(row int, column string) int64
	Text(row int, column string) string
}

// Extractor reads the primary key column of data rows.
type Extractor struct {
	Kind   Kind
	Column string
}

// Extract returns the identity of backing element row.
func (e Extractor) Extract(r Reader, row int) (Identity, error) {
	switch e.Kind {
	case KindInteger:
		return Int(r.Int64(row, e.Column)), nil
	case KindString:
		return String(r.Text(row, e.Column)), nil
	default:
		return Identity{}, errors.Wrapf(ErrUnknownKind, "extracting row %d with kind %s", row, e.Kind)
	}
}

// Sequence builds the identity of every visible row. When grouped is set the
// identities follow flat, with header rows identified by their label;
// otherwise they follow the count backing elements in order.
func (e Extractor) Sequence(r Reader, count int, flat []rows.Row, grouped bool) ([]Identity, error) {
	if grouped {
		ids := make([]Identity, 0, len(flat))
		for _, row := range flat {
			if !row.IsData {
				ids = append(ids, Header(row.Header))
				continue
			}
			id, err := e.Extract(r, row.DataIndex)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	ids := make([]Identity, 0, count)
	for i := 0; i < count; i++ {
		id, err := e.Extract(r, i)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Ints is a convenience for building integer identity sequences.
func Ints(vs ...int64) []Identity {
	ids := make([]Identity, len(vs))
	for i, v := range vs {
		ids[i] = Int(v)
	}
	return ids
}
