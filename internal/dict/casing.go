package dict

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type casing int

const (
	caseLower   casing = iota // all lower, or no cased letters
	caseInitial               // first letter upper, rest lower
	caseUpper                 // every cased letter upper
	caseMixed                 // anything else, e.g. "iPhone"
)

var (
	lowerCaser = cases.Lower(language.Und)
	upperCaser = cases.Upper(language.Und)
)

func casingOf(word string) casing {
	var upper, lower int
	firstUpper := false
	first := true
	for _, r := range word {
		if unicode.IsUpper(r) {
			upper++
			if first {
				firstUpper = true
			}
		} else if unicode.IsLower(r) {
			lower++
		}
		if unicode.IsLetter(r) {
			first = false
		}
	}
	switch {
	case upper == 0:
		return caseLower
	case lower == 0 && upper > 1:
		return caseUpper
	case firstUpper && upper == 1:
		return caseInitial
	default:
		return caseMixed
	}
}

func lowerCase(s string) string {
	return lowerCaser.String(s)
}

func upperCase(s string) string {
	return upperCaser.String(s)
}

// capitalize upper-cases the first rune and leaves the rest untouched.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToTitle(r)) + s[size:]
}

// applyCasing gives a suggestion the case pattern of the word it replaces.
func applyCasing(suggestion string, pattern casing) string {
	switch pattern {
	case caseInitial:
		return capitalize(suggestion)
	case caseUpper:
		return upperCase(suggestion)
	}
	return suggestion
}
