// Package dict loads Hunspell-style affix and word list pairs and answers
// spelling and suggestion queries against the expanded word forms.
//
// A Dictionary is immutable once Load returns, so it can be shared between
// goroutines without locking. Loading fails as a whole: callers get either a
// fully loaded Dictionary or an error wrapping ErrUnavailable.
package dict

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// ErrUnavailable reports a dictionary that could not be fetched or parsed,
// or one that is not loaded yet.
var ErrUnavailable = errors.New("dictionary unavailable")

type wordInfo uint8

const (
	infoNoSuggest wordInfo = 1 << iota
	infoForbidden
	infoKeepCase
)

// Dictionary is a loaded affix/word list pair.
type Dictionary struct {
	forms map[string]wordInfo
	// suggestable forms in sorted order, scanned for near-miss suggestions
	sorted []string
	try    []rune
	keys   []string
	reps   []replacement
}

// Load parses an affix source and a word list source.
func Load(affix, words io.Reader) (*Dictionary, error) {
	affData, err := io.ReadAll(affix)
	if err != nil {
		return nil, fmt.Errorf("%w: read affix: %v", ErrUnavailable, err)
	}
	dicData, err := io.ReadAll(words)
	if err != nil {
		return nil, fmt.Errorf("%w: read word list: %v", ErrUnavailable, err)
	}

	enc := detectEncoding(affData)
	affText, err := decode(affData, enc)
	if err != nil {
		return nil, fmt.Errorf("%w: affix: %v", ErrUnavailable, err)
	}
	dicText, err := decode(dicData, enc)
	if err != nil {
		return nil, fmt.Errorf("%w: word list: %v", ErrUnavailable, err)
	}

	aff, err := parseAffix(affText)
	if err != nil {
		return nil, fmt.Errorf("%w: affix: %v", ErrUnavailable, err)
	}

	d := &Dictionary{
		forms: make(map[string]wordInfo),
		try:   aff.try,
		keys:  aff.keys,
		reps:  aff.reps,
	}
	if err := d.readWords(dicText, aff); err != nil {
		return nil, fmt.Errorf("%w: word list: %v", ErrUnavailable, err)
	}

	for form, info := range d.forms {
		if info&(infoNoSuggest|infoForbidden) == 0 {
			d.sorted = append(d.sorted, form)
		}
	}
	sort.Strings(d.sorted)
	return d, nil
}

func decode(data []byte, enc string) (string, error) {
	switch enc {
	case "UTF-8", "UTF8", "":
		return string(data), nil
	case "ISO8859-1", "ISO-8859-1", "LATIN1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case "ISO8859-15", "ISO-8859-15":
		out, err := charmap.ISO8859_15.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unsupported encoding %s", enc)
	}
}

func (d *Dictionary) readWords(text string, aff *affixFile) error {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sawCount := false
	entries := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if !sawCount {
			if line == "" {
				continue
			}
			fields := strings.Fields(line)
			if _, err := strconv.Atoi(fields[0]); err != nil {
				return fmt.Errorf("line %d: expected word count, got %q", lineNo, fields[0])
			}
			sawCount = true
			continue
		}
		// Lines starting with a tab or '#' are comments.
		if line == "" || strings.HasPrefix(raw, "\t") || strings.HasPrefix(line, "#") {
			continue
		}

		word, flagText := splitEntry(line)
		if word == "" {
			continue
		}
		word = norm.NFC.String(word)
		d.expand(word, splitFlags(flagText, aff.mode), aff)
		entries++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if !sawCount {
		return errors.New("missing word count line")
	}
	if entries == 0 {
		return errors.New("empty word list")
	}
	return nil
}

// splitEntry separates "word/FLAGS morph..." into word and flags.
// A "\/" sequence is a literal slash inside the word.
func splitEntry(line string) (word, flags string) {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		line = line[:i]
	}
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line) && line[i+1] == '/':
			b.WriteByte('/')
			i++
		case c == '/':
			rest := line[i+1:]
			if j := strings.IndexAny(rest, " \t"); j >= 0 {
				rest = rest[:j]
			}
			return b.String(), rest
		case c == ' ':
			return b.String(), ""
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), ""
}

func hasFlag(flags []string, flag string) bool {
	if flag == "" {
		return false
	}
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func (d *Dictionary) add(form string, info wordInfo) {
	prev, ok := d.forms[form]
	if !ok {
		d.forms[form] = info
		return
	}
	// Forbidden wins; NOSUGGEST and KEEPCASE only stick when every
	// entry producing the form carries them.
	merged := (prev | info) & infoForbidden
	merged |= prev & info & (infoNoSuggest | infoKeepCase)
	d.forms[form] = merged
}

func (d *Dictionary) expand(word string, flags []string, aff *affixFile) {
	var info wordInfo
	if hasFlag(flags, aff.noSuggest) {
		info |= infoNoSuggest
	}
	if hasFlag(flags, aff.keepCase) {
		info |= infoKeepCase
	}
	if hasFlag(flags, aff.forbidden) {
		d.add(word, info|infoForbidden)
		return
	}
	if !hasFlag(flags, aff.needAffix) {
		d.add(word, info)
	}

	var crossForms []string
	for _, f := range flags {
		cls, ok := aff.suffixes[f]
		if !ok {
			continue
		}
		for _, rule := range cls.rules {
			form, ok := rule.applySuffix(word)
			if !ok {
				continue
			}
			d.add(form, info)
			if cls.cross {
				crossForms = append(crossForms, form)
			}
		}
	}

	for _, f := range flags {
		cls, ok := aff.prefixes[f]
		if !ok {
			continue
		}
		for _, rule := range cls.rules {
			if form, ok := rule.applyPrefix(word); ok {
				d.add(form, info)
			}
			if !cls.cross {
				continue
			}
			for _, base := range crossForms {
				if form, ok := rule.applyPrefix(base); ok {
					d.add(form, info)
				}
			}
		}
	}
}

// Loaded reports whether d holds a parsed dictionary. It is safe to call on
// a nil *Dictionary.
func (d *Dictionary) Loaded() bool {
	return d != nil && len(d.forms) > 0
}

// Size returns the number of expanded word forms.
func (d *Dictionary) Size() int {
	if d == nil {
		return 0
	}
	return len(d.forms)
}

// Check reports whether word is a valid form.
func (d *Dictionary) Check(word string) bool {
	if !d.Loaded() {
		return false
	}
	word = norm.NFC.String(word)
	if !hasLetter(word) {
		return true
	}
	if d.lookup(word, true) {
		return true
	}
	switch casingOf(word) {
	case caseInitial:
		return d.lookup(lowerCase(word), false)
	case caseUpper:
		lower := lowerCase(word)
		return d.lookup(lower, false) || d.lookup(capitalize(lower), false)
	}
	return false
}

func (d *Dictionary) lookup(form string, exact bool) bool {
	info, ok := d.forms[form]
	if !ok || info&infoForbidden != 0 {
		return false
	}
	if !exact && info&infoKeepCase != 0 {
		return false
	}
	return true
}

func (d *Dictionary) suggestable(form string) bool {
	info, ok := d.forms[form]
	return ok && info&(infoForbidden|infoNoSuggest) == 0
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
