package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/risk-enrichment/internal/model"
)

func TestParseName(t *testing.T) {
	cases := []struct {
		in   string
		want Name
	}{
		{"Doe, Jane", Name{First: "Jane", Last: "Doe"}},
		{"Doe,  Jane Marie", Name{First: "Jane", Last: "Doe"}},
		{"Jane Marie Doe", Name{First: "Jane", Last: "Doe"}},
		{"John Smith Jr.", Name{First: "John", Last: "Smith"}},
		{"Cher", Name{Last: "Cher"}},
		{"   ", Name{}},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			assert.Equal(t, c.want, ParseName(c.in))
		})
	}
}

func TestNameForms(t *testing.T) {
	n := Name{First: "Jane", Last: "Doe"}
	assert.Equal(t, "Jane Doe", n.Full())
	assert.Equal(t, "Doe Jane", n.Reversed())
	assert.True(t, n.Valid())
	assert.False(t, Name{First: "Jane"}.Valid())
}

func TestFold(t *testing.T) {
	assert.Equal(t, "jose oneil", Fold("  José   O'Neil "))
	assert.Equal(t, "garcia marquez", Fold("García-Márquez"))
	assert.Equal(t, "doe jane", Fold("DOE, JANE"))
	assert.Equal(t, "", Fold("..."))
}

func TestMatchesName(t *testing.T) {
	n := Name{First: "Jane", Last: "Doe"}
	assert.True(t, matchesName("DOE JANE M", n))
	assert.True(t, matchesName("Doe J", n))
	assert.True(t, matchesName("jane doe", n))
	assert.False(t, matchesName("DOE JOHN", n))
	assert.False(t, matchesName("DOER JANE", n))
	assert.False(t, matchesName("", n))

	assert.True(t, matchesName("DE LA CRUZ MARIA", Name{First: "María", Last: "de la Cruz"}))
	assert.True(t, matchesName("SMITH ANYONE", Name{Last: "Smith"}))
}

func TestSubjectPersonName(t *testing.T) {
	s := Subject{Attributes: model.Attributes{Name: "ignored name", FirstName: "Jane", LastName: "Doe"}}
	assert.Equal(t, Name{First: "Jane", Last: "Doe"}, s.PersonName())

	s = Subject{Attributes: model.Attributes{Name: "Roe, Richard"}}
	assert.Equal(t, Name{First: "Richard", Last: "Roe"}, s.PersonName())
}

func TestSubjectEmailAddress(t *testing.T) {
	assert.Equal(t, "jane@example.com", Subject{Attributes: model.Attributes{Email: " Jane@Example.COM "}}.EmailAddress())
	assert.Equal(t, "", Subject{Attributes: model.Attributes{Email: "jane"}}.EmailAddress())
	assert.Equal(t, "", Subject{Attributes: model.Attributes{Email: "jane@"}}.EmailAddress())
	assert.Equal(t, "", Subject{Attributes: model.Attributes{Email: "@example.com"}}.EmailAddress())
}
