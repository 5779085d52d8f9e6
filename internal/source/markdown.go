package source

import (
	"os"
	"regexp"
	"strings"
)

// MarkdownFormat implements Format for Markdown files.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

func (f *MarkdownFormat) Extract(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return StripMarkdown(Normalize(data)), nil
}

var (
	// headerRegex matches markdown headers (# to ######)
	headerRegex   = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.*?)\s*#*\s*$`)
	quoteRegex    = regexp.MustCompile(`^\s{0,3}>\s?`)
	bulletRegex   = regexp.MustCompile(`^(\s*)[-*+]\s+`)
	ruleRegex     = regexp.MustCompile(`^\s{0,3}([-*_])(\s*([-*_])){2,}\s*$`)
	imageRegex    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRegex     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	emphasisRegex = regexp.MustCompile("(\\*\\*|__|\\*|`)")
)

// StripMarkdown removes Markdown markup and keeps the prose. Line
// structure is preserved; fenced code blocks keep their contents.
func StripMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		if ruleRegex.MatchString(line) {
			out = append(out, "")
			continue
		}
		if m := headerRegex.FindStringSubmatch(line); m != nil {
			line = m[1]
		}
		line = quoteRegex.ReplaceAllString(line, "")
		line = bulletRegex.ReplaceAllString(line, "$1")
		line = imageRegex.ReplaceAllString(line, "$1")
		line = linkRegex.ReplaceAllString(line, "$1")
		line = emphasisRegex.ReplaceAllString(line, "")
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
