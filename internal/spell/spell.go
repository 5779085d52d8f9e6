// Package spell corrects raw OCR text token by token against a dictionary.
package spell

import "strings"

// sentencePunct is stripped from the end of a token before lookup and
// reattached afterwards.
const sentencePunct = ".,!?;:"

// Checker answers spelling queries. *dict.Dictionary implements it.
type Checker interface {
	Check(word string) bool
	Suggest(word string) []string
}

type loader interface {
	Loaded() bool
}

// available reports whether c can answer queries. A typed nil dictionary
// stored in the interface counts as absent.
func available(c Checker) bool {
	if c == nil {
		return false
	}
	if l, ok := c.(loader); ok {
		return l.Loaded()
	}
	return true
}

// Split separates a token into its stem and a trailing run of sentence
// punctuation.
func Split(token string) (stem, suffix string) {
	stem = strings.TrimRight(token, sentencePunct)
	return stem, token[len(stem):]
}

// CorrectToken returns the replacement for a single whitespace-free token.
func CorrectToken(token string, c Checker) string {
	stem, suffix := Split(token)
	if stem == "" || c.Check(stem) {
		return token
	}
	suggestions := c.Suggest(stem)
	if len(suggestions) == 0 {
		return token
	}
	return suggestions[0] + suffix
}

// Correct replaces every unrecognized token in text with the checker's
// first suggestion and joins the tokens with single spaces. With no
// checker the text is returned unchanged.
func Correct(text string, c Checker) string {
	if !available(c) {
		return text
	}
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		tokens[i] = CorrectToken(tok, c)
	}
	return strings.Join(tokens, " ")
}

// Misspelling is one unrecognized token found by Find.
type Misspelling struct {
	Index       int // token position in the whitespace-split text
	Token       string
	Suggestions []string
}

// Find lists the unrecognized tokens of text with their suggestions.
func Find(text string, c Checker) []Misspelling {
	if !available(c) {
		return nil
	}
	var out []Misspelling
	for i, tok := range strings.Fields(text) {
		stem, _ := Split(tok)
		if stem == "" || c.Check(stem) {
			continue
		}
		out = append(out, Misspelling{
			Index:       i,
			Token:       tok,
			Suggestions: c.Suggest(stem),
		})
	}
	return out
}
