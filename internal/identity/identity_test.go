package identity

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livelist/internal/rows"
)

type tableReader struct {
	ints  map[string][]int64
	texts map[string][]string
}

func (r tableReader) Int64(row int, column string) int64 { return r.ints[column][row] }
func (r tableReader) Text(row int, column string) string { return r.texts[column][row] }

func TestIdentityEquality(t *testing.T) {
	assert.Equal(t, Int(7), Int(7))
	assert.NotEqual(t, Int(7), Int(8))
	assert.Equal(t, String("a"), String("a"))
	assert.NotEqual(t, String("A"), Header("A"), "header labels must not collide with string keys")
	assert.NotEqual(t, Identity{}, Int(0), "zero value is not an integer identity")

	seen := map[Identity]bool{Int(1): true, String("1"): true, Header("1"): true}
	assert.Len(t, seen, 3)
}

func TestIdentityAccessors(t *testing.T) {
	n, ok := Int(42).Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = String("x").Int64()
	assert.False(t, ok)

	s, ok := Header("B").Text()
	assert.True(t, ok)
	assert.Equal(t, "B", s)

	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, `"x"`, String("x").String())
	assert.Equal(t, `header("B")`, Header("B").String())
	assert.Equal(t, KindHeader, Header("B").Kind())
}

func TestExtract(t *testing.T) {
	r := tableReader{
		ints:  map[string][]int64{"id": {10, 20}},
		texts: map[string][]string{"slug": {"ten", "twenty"}},
	}

	id, err := Extractor{Kind: KindInteger, Column: "id"}.Extract(r, 1)
	require.NoError(t, err)
	assert.Equal(t, Int(20), id)

	id, err = Extractor{Kind: KindString, Column: "slug"}.Extract(r, 0)
	require.NoError(t, err)
	assert.Equal(t, String("ten"), id)

	_, err = Extractor{Kind: KindHeader, Column: "id"}.Extract(r, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))

	_, err = Extractor{}.Extract(r, 0)
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestSequence(t *testing.T) {
	r := tableReader{
		ints:  map[string][]int64{"id": {3, 1, 2}},
		texts: map[string][]string{"name": {"ada", "bob", "bea"}},
	}
	e := Extractor{Kind: KindInteger, Column: "id"}

	t.Run("ungrouped", func(t *testing.T) {
		ids, err := e.Sequence(r, 3, nil, false)
		require.NoError(t, err)
		assert.Equal(t, Ints(3, 1, 2), ids)
	})

	t.Run("grouped", func(t *testing.T) {
		flat := rows.Flatten(3, func(i int) string { return r.texts["name"][i] }, func(k string) string { return k[:1] })
		ids, err := e.Sequence(r, 3, flat, true)
		require.NoError(t, err)
		assert.Equal(t, []Identity{Header("a"), Int(3), Header("b"), Int(1), Int(2)}, ids)
	})

	t.Run("empty", func(t *testing.T) {
		ids, err := e.Sequence(r, 0, nil, false)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("unknown kind aborts", func(t *testing.T) {
		_, err := Extractor{Column: "id"}.Sequence(r, 3, nil, false)
		assert.True(t, errors.Is(err, ErrUnknownKind))
	})
}
