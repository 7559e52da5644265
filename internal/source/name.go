package source

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name is a person name split for provider queries.
type Name struct {
	First string
	Last  string
}

// ParseName splits "Last, First" and "First [Middle] Last" forms.
// A single token is treated as a last name.
func ParseName(s string) Name {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return Name{}
	}
	if last, rest, ok := strings.Cut(s, ","); ok {
		first, _, _ := strings.Cut(strings.TrimSpace(rest), " ")
		return Name{First: first, Last: strings.TrimSpace(last)}
	}
	parts := strings.Fields(s)
	if len(parts) == 1 {
		return Name{Last: parts[0]}
	}
	last := parts[len(parts)-1]
	// Drop generational suffixes so "John Smith Jr" matches on Smith.
	if isSuffix(last) && len(parts) > 2 {
		last = parts[len(parts)-2]
	}
	return Name{First: parts[0], Last: last}
}

// Valid reports whether a last name is known.
func (n Name) Valid() bool { return n.Last != "" }

// Full returns "First Last".
func (n Name) Full() string { return strings.TrimSpace(n.First + " " + n.Last) }

// Reversed returns "Last First", the order bulk registries use.
func (n Name) Reversed() string { return strings.TrimSpace(n.Last + " " + n.First) }

func isSuffix(s string) bool {
	switch strings.ToLower(strings.TrimSuffix(s, ".")) {
	case "jr", "sr", "ii", "iii", "iv":
		return true
	}
	return false
}

// Fold lowercases s, strips diacritics and punctuation, and collapses
// whitespace, so "José  O'Neil" and "jose oneil" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == ',':
			space = true
		}
	}
	return b.String()
}

// tokens returns the folded words of s.
func tokens(s string) []string { return strings.Fields(Fold(s)) }

// matchesName reports whether candidate, a full name in any word order,
// contains n's last name and, when known, n's first name or its initial.
func matchesName(candidate string, n Name) bool {
	words := tokens(candidate)
	last := Fold(n.Last)
	first := Fold(n.First)
	if last == "" || len(words) == 0 {
		return false
	}
	if !strings.Contains(" "+strings.Join(words, " ")+" ", " "+last+" ") {
		return false
	}
	if first == "" {
		return true
	}
	for _, w := range words {
		if w == first || (len(w) == 1 && w[0] == first[0]) {
			return true
		}
	}
	return false
}
