package dict

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxSuggestions caps the list returned by Suggest.
	MaxSuggestions = 10

	// MaxWordLength is the longest word, in characters, Suggest works on.
	// Candidate generation grows quadratically with length.
	MaxWordLength = 100

	maxNearMissDistance = 2
)

// collector gathers candidates in generation order without duplicates.
type collector struct {
	d     *Dictionary
	seen  map[string]bool
	found []string
}

func (c *collector) try(candidate string) {
	if candidate == "" || c.seen[candidate] {
		return
	}
	c.seen[candidate] = true
	if c.d.suggestable(candidate) {
		c.found = append(c.found, candidate)
	}
}

// trySplit accepts "a b" when both halves are valid words.
func (c *collector) trySplit(a, b string) {
	joined := a + " " + b
	if c.seen[joined] {
		return
	}
	c.seen[joined] = true
	if c.d.suggestable(a) && c.d.suggestable(b) {
		c.found = append(c.found, joined)
	}
}

// Suggest returns replacement candidates for word, best first. The order
// is deterministic for a given dictionary: case fixes and REP table hits,
// then single-edit candidates in the order swap, insertion, deletion,
// keyboard neighbour, substitution, then two-word splits. When none of
// those produce a word, the whole word set is scanned for forms within a
// small edit distance, nearest first.
func (d *Dictionary) Suggest(word string) []string {
	if !d.Loaded() || word == "" || utf8.RuneCountInString(word) > MaxWordLength {
		return nil
	}
	word = norm.NFC.String(word)
	pattern := casingOf(word)

	base := word
	if pattern == caseInitial || pattern == caseUpper {
		base = lowerCase(word)
	}

	c := &collector{d: d, seen: map[string]bool{word: true}}

	c.try(base)
	c.try(capitalize(base))
	c.try(lowerCase(word))
	for _, v := range variants(word, base) {
		d.replacements(c, v)
	}
	for _, v := range variants(word, base) {
		d.edits(c, []rune(v))
	}
	if len(c.found) == 0 {
		c.found = d.nearMiss(base)
	}

	out := make([]string, 0, len(c.found))
	dedup := make(map[string]bool, len(c.found))
	for _, s := range c.found {
		s = applyCasing(s, pattern)
		if s == word || dedup[s] {
			continue
		}
		dedup[s] = true
		out = append(out, s)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

func variants(word, base string) []string {
	if word == base {
		return []string{base}
	}
	return []string{base, word}
}

func (d *Dictionary) replacements(c *collector, word string) {
	for _, rep := range d.reps {
		if rep.from == "" {
			continue
		}
		start := 0
		for {
			i := strings.Index(word[start:], rep.from)
			if i < 0 {
				break
			}
			i += start
			candidate := word[:i] + rep.to + word[i+len(rep.from):]
			if a, b, ok := strings.Cut(candidate, " "); ok {
				c.trySplit(a, b)
			} else {
				c.try(candidate)
			}
			start = i + len(rep.from)
		}
	}
}

func (d *Dictionary) edits(c *collector, w []rune) {
	n := len(w)

	// adjacent swaps
	for i := 0; i+1 < n; i++ {
		if w[i] == w[i+1] {
			continue
		}
		s := append([]rune(nil), w...)
		s[i], s[i+1] = s[i+1], s[i]
		c.try(string(s))
	}

	// insertions
	for i := 0; i <= n; i++ {
		for _, t := range d.try {
			c.try(string(w[:i]) + string(t) + string(w[i:]))
		}
	}

	// deletions
	for i := 0; i < n; i++ {
		c.try(string(w[:i]) + string(w[i+1:]))
	}

	// keyboard neighbours
	for i, r := range w {
		for _, row := range d.keys {
			rr := []rune(row)
			for j, k := range rr {
				if k != r {
					continue
				}
				if j > 0 {
					c.try(replaceAt(w, i, rr[j-1]))
				}
				if j+1 < len(rr) {
					c.try(replaceAt(w, i, rr[j+1]))
				}
			}
		}
	}

	// substitutions
	for i, r := range w {
		for _, t := range d.try {
			if t != r {
				c.try(replaceAt(w, i, t))
			}
		}
	}

	// two-word splits
	for i := 1; i < n; i++ {
		c.trySplit(string(w[:i]), string(w[i:]))
	}
}

func replaceAt(w []rune, i int, r rune) string {
	s := append([]rune(nil), w...)
	s[i] = r
	return string(s)
}

// nearMiss scans every suggestable form for ones within
// maxNearMissDistance edits of word.
func (d *Dictionary) nearMiss(word string) []string {
	type scored struct {
		form string
		dist int
	}
	length := utf8.RuneCountInString(word)
	var hits []scored
	for _, form := range d.sorted {
		diff := utf8.RuneCountInString(form) - length
		if diff > maxNearMissDistance || diff < -maxNearMissDistance {
			continue
		}
		dist := levenshtein.Distance(word, lowerCase(form), nil)
		if dist <= maxNearMissDistance {
			hits = append(hits, scored{form: form, dist: dist})
		}
	}
	// d.sorted is alphabetical, so a stable sort keeps ties alphabetical.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.form)
	}
	return out
}
