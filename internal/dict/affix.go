package dict

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type flagMode int

const (
	flagShort flagMode = iota
	flagLong
	flagNum
	flagUTF8
)

type replacement struct {
	from string
	to   string
}

type affixRule struct {
	strip string
	add   string
	cond  condition
}

type affixClass struct {
	flag   string
	prefix bool
	cross  bool
	count  int
	rules  []affixRule
}

// affixFile holds the directives of a parsed .aff file that the
// dictionary uses at load and query time.
type affixFile struct {
	encoding  string
	mode      flagMode
	try       []rune
	keys      []string
	reps      []replacement
	prefixes  map[string]*affixClass
	suffixes  map[string]*affixClass
	noSuggest string
	forbidden string
	needAffix string
	keepCase  string
}

// detectEncoding scans for a SET directive before the file is decoded.
func detectEncoding(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "SET" {
			return strings.ToUpper(fields[1])
		}
	}
	return "UTF-8"
}

func parseAffix(text string) (*affixFile, error) {
	aff := &affixFile{
		encoding: "UTF-8",
		prefixes: make(map[string]*affixClass),
		suffixes: make(map[string]*affixClass),
	}

	var (
		open    *affixClass // block whose rule lines are still expected
		repLeft int
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		directive := fields[0]

		if open != nil && len(open.rules) < open.count {
			kind := "SFX"
			if open.prefix {
				kind = "PFX"
			}
			if directive != kind {
				return nil, fmt.Errorf("line %d: %s %s expects %d rules, got %d", lineNo, kind, open.flag, open.count, len(open.rules))
			}
			rule, err := parseRule(fields, open)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			open.rules = append(open.rules, rule)
			continue
		}

		if repLeft > 0 {
			if directive != "REP" || len(fields) < 3 {
				return nil, fmt.Errorf("line %d: malformed REP entry", lineNo)
			}
			aff.reps = append(aff.reps, replacement{
				from: strings.ReplaceAll(fields[1], "_", " "),
				to:   strings.ReplaceAll(fields[2], "_", " "),
			})
			repLeft--
			continue
		}

		switch directive {
		case "SET":
			if len(fields) >= 2 {
				aff.encoding = strings.ToUpper(fields[1])
			}
		case "FLAG":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: FLAG needs a value", lineNo)
			}
			switch fields[1] {
			case "long":
				aff.mode = flagLong
			case "num":
				aff.mode = flagNum
			case "UTF-8":
				aff.mode = flagUTF8
			default:
				return nil, fmt.Errorf("line %d: unknown FLAG type %q", lineNo, fields[1])
			}
		case "TRY":
			if len(fields) >= 2 {
				aff.try = []rune(fields[1])
			}
		case "KEY":
			if len(fields) >= 2 {
				aff.keys = strings.Split(fields[1], "|")
			}
		case "REP":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: REP needs a count", lineNo)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: bad REP count %q", lineNo, fields[1])
			}
			repLeft = n
		case "NOSUGGEST":
			aff.noSuggest = flagArg(fields)
		case "FORBIDDENWORD":
			aff.forbidden = flagArg(fields)
		case "NEEDAFFIX", "PSEUDOROOT":
			aff.needAffix = flagArg(fields)
		case "KEEPCASE":
			aff.keepCase = flagArg(fields)
		case "PFX", "SFX":
			cls, err := parseClassHeader(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			table := aff.suffixes
			if cls.prefix {
				table = aff.prefixes
			}
			if prev, ok := table[cls.flag]; ok {
				// Some dictionaries split one flag over several headers.
				prev.count += cls.count
				cls = prev
			} else {
				table[cls.flag] = cls
			}
			open = cls
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if open != nil && len(open.rules) < open.count {
		return nil, fmt.Errorf("affix %s: expected %d rules, got %d", open.flag, open.count, len(open.rules))
	}
	if repLeft > 0 {
		return nil, fmt.Errorf("REP table truncated: %d entries missing", repLeft)
	}
	return aff, nil
}

func flagArg(fields []string) string {
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func parseClassHeader(fields []string) (*affixClass, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("malformed %s header", fields[0])
	}
	n, err := strconv.Atoi(fields[3])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("bad %s rule count %q", fields[0], fields[3])
	}
	return &affixClass{
		flag:   fields[1],
		prefix: fields[0] == "PFX",
		cross:  fields[2] == "Y",
		count:  n,
	}, nil
}

func parseRule(fields []string, cls *affixClass) (affixRule, error) {
	if len(fields) < 4 {
		return affixRule{}, fmt.Errorf("malformed %s rule", fields[0])
	}
	if fields[1] != cls.flag {
		return affixRule{}, fmt.Errorf("%s rule flag %q inside block %q", fields[0], fields[1], cls.flag)
	}
	strip := fields[2]
	if strip == "0" {
		strip = ""
	}
	add := fields[3]
	if i := strings.IndexByte(add, '/'); i >= 0 {
		// Continuation classes are not expanded.
		add = add[:i]
	}
	if add == "0" {
		add = ""
	}
	condText := "."
	if len(fields) >= 5 {
		condText = fields[4]
	}
	cond, err := parseCondition(condText)
	if err != nil {
		return affixRule{}, err
	}
	return affixRule{strip: strip, add: add, cond: cond}, nil
}

// splitFlags decodes a flag field from the word list according to the
// FLAG directive.
func splitFlags(s string, mode flagMode) []string {
	if s == "" {
		return nil
	}
	switch mode {
	case flagLong:
		var out []string
		runes := []rune(s)
		for i := 0; i+1 < len(runes); i += 2 {
			out = append(out, string(runes[i:i+2]))
		}
		return out
	case flagNum:
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		out := make([]string, 0, utf8.RuneCountInString(s))
		for _, r := range s {
			out = append(out, string(r))
		}
		return out
	}
}

// charClass is one position of an affix condition.
type charClass struct {
	any    bool
	negate bool
	set    string
}

func (c charClass) match(r rune) bool {
	if c.any {
		return true
	}
	in := strings.ContainsRune(c.set, r)
	return in != c.negate
}

// condition is the Hunspell condition subset: literals, '.', [abc], [^abc].
type condition []charClass

func parseCondition(s string) (condition, error) {
	if s == "." {
		return nil, nil
	}
	var cond condition
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '.':
			cond = append(cond, charClass{any: true})
		case '[':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == ']' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unclosed bracket in condition %q", s)
			}
			body := runes[i+1 : end]
			cls := charClass{}
			if len(body) > 0 && body[0] == '^' {
				cls.negate = true
				body = body[1:]
			}
			cls.set = string(body)
			cond = append(cond, cls)
			i = end
		default:
			cond = append(cond, charClass{set: string(r)})
		}
	}
	return cond, nil
}

func (c condition) matchSuffix(word []rune) bool {
	if len(c) > len(word) {
		return false
	}
	off := len(word) - len(c)
	for i, cls := range c {
		if !cls.match(word[off+i]) {
			return false
		}
	}
	return true
}

func (c condition) matchPrefix(word []rune) bool {
	if len(c) > len(word) {
		return false
	}
	for i, cls := range c {
		if !cls.match(word[i]) {
			return false
		}
	}
	return true
}

func (r affixRule) applySuffix(word string) (string, bool) {
	if !strings.HasSuffix(word, r.strip) || len(word) <= len(r.strip) {
		return "", false
	}
	if !r.cond.matchSuffix([]rune(word)) {
		return "", false
	}
	return word[:len(word)-len(r.strip)] + r.add, true
}

func (r affixRule) applyPrefix(word string) (string, bool) {
	if !strings.HasPrefix(word, r.strip) || len(word) <= len(r.strip) {
		return "", false
	}
	if !r.cond.matchPrefix([]rune(word)) {
		return "", false
	}
	return r.add + word[len(r.strip):], true
}
