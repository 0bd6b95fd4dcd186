package fake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicForSeed(t *testing.T) {
	a := New(7).People(5)
	b := New(7).People(5)
	assert.Equal(t, a, b)
}

func TestPerson(t *testing.T) {
	p := New(1).Person()
	assert.NotEmpty(t, p.Name)
	assert.NotEmpty(t, p.City)
	assert.True(t, strings.Contains(p.Email, "@"), "email %q", p.Email)
}

func TestRecords(t *testing.T) {
	records := New(3).Records(4)
	require.Len(t, records, 4)
	for i, r := range records {
		assert.Equal(t, int64(i+1), r["id"])
		assert.NotEmpty(t, r["name"])
	}
}

func TestIntn(t *testing.T) {
	g := New(11)
	for i := 0; i < 100; i++ {
		n := g.Intn(3)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 3)
	}
	assert.True(t, g.Chance(100))
	assert.False(t, g.Chance(0))
}
