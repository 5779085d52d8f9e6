// Package highlight marks case-insensitive occurrences of a search query in
// displayed text.
package highlight

import (
	"regexp"
	"strings"
)

// Default markers wrapped around each match by Highlight.
const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
)

// Span is a run of text that either matches the query or does not.
type Span struct {
	Text  string
	Match bool
}

// pattern compiles query as a literal, case-insensitive expression. The
// query never carries regexp syntax: metacharacters are escaped.
func pattern(query string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
}

// Spans splits text into matching and non-matching runs. Matches are
// found left to right and never overlap. An empty query yields a single
// non-matching span (or none for empty text).
func Spans(text, query string) []Span {
	if text == "" {
		return nil
	}
	if query == "" {
		return []Span{{Text: text}}
	}

	var spans []Span
	last := 0
	for _, loc := range pattern(query).FindAllStringIndex(text, -1) {
		if loc[0] > last {
			spans = append(spans, Span{Text: text[last:loc[0]]})
		}
		spans = append(spans, Span{Text: text[loc[0]:loc[1]], Match: true})
		last = loc[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}
	return spans
}

// Mark wraps every match of query in text with open and close.
func Mark(text, query, open, close string) string {
	if query == "" {
		return text
	}
	var b strings.Builder
	for _, s := range Spans(text, query) {
		if s.Match {
			b.WriteString(open)
			b.WriteString(s.Text)
			b.WriteString(close)
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Highlight wraps every match of query in text with <mark> tags. The rest
// of the text is left untouched.
func Highlight(text, query string) string {
	return Mark(text, query, MarkOpen, MarkClose)
}

// Count returns the number of matches of query in text.
func Count(text, query string) int {
	if query == "" || text == "" {
		return 0
	}
	return len(pattern(query).FindAllStringIndex(text, -1))
}
