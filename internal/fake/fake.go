// Package fake generates people for seeding and churning the demo database.
package fake

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/livefir/livelist"
)

// Person is a generated row without an id.
type Person struct {
	Name  string
	City  string
	Email string
}

// Generator produces deterministic people for a seed. It is not safe for
// concurrent use.
type Generator struct {
	faker *gofakeit.Faker
}

// New returns a generator seeded with seed. Seed 0 picks a random seed.
func New(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Person returns one generated person.
func (g *Generator) Person() Person {
	first := g.faker.FirstName()
	last := g.faker.LastName()
	return Person{
		Name:  first + " " + last,
		City:  g.faker.City(),
		Email: strings.ToLower(first+"."+last) + "@" + g.faker.DomainName(),
	}
}

// People returns n generated people.
func (g *Generator) People(n int) []Person {
	people := make([]Person, 0, n)
	for i := 0; i < n; i++ {
		people = append(people, g.Person())
	}
	return people
}

// Records returns n generated people as source records keyed by ids 1..n.
func (g *Generator) Records(n int) []livelist.Record {
	records := make([]livelist.Record, 0, n)
	for i, p := range g.People(n) {
		records = append(records, livelist.Record{
			"id":    int64(i + 1),
			"name":  p.Name,
			"city":  p.City,
			"email": p.Email,
		})
	}
	return records
}

// Intn returns a number in [0, n). n must be positive.
func (g *Generator) Intn(n int) int {
	return g.faker.IntRange(0, n-1)
}

// Chance reports true with probability percent/100.
func (g *Generator) Chance(percent int) bool {
	return g.faker.IntRange(1, 100) <= percent
}
