// Package export turns the current note text into the two artifacts the
// viewer offers: a flat UTF-8 text file and a paginated PDF.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyTarget is returned when there is no text to export.
var ErrEmptyTarget = errors.New("nothing to export")

// DefaultBasename is the fixed artifact name used when none is configured.
const DefaultBasename = "converted-notes"

// Kind selects an export format.
type Kind int

const (
	Text Kind = iota
	PDF
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "txt"
	case PDF:
		return "pdf"
	}
	return "unknown"
}

// Ext returns the file extension for the kind, including the dot.
func (k Kind) Ext() string {
	return "." + k.String()
}

// ParseKind maps a user-facing format name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "txt", "text":
		return Text, nil
	case "pdf":
		return PDF, nil
	}
	return 0, fmt.Errorf("unknown export format %q (want txt or pdf)", s)
}

// Source picks the text that export and copy operate on: the corrected
// text when there is any, the raw text otherwise.
func Source(corrected, raw string) string {
	if corrected != "" {
		return corrected
	}
	return raw
}

// TextBytes encodes text as a flat UTF-8 document.
func TextBytes(text string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyTarget
	}
	return []byte(text), nil
}

// Render produces the document bytes for kind.
func Render(kind Kind, text string, layout Layout) ([]byte, error) {
	switch kind {
	case Text:
		return TextBytes(text)
	case PDF:
		return PDFBytes(text, layout)
	}
	return nil, fmt.Errorf("unknown export kind %d", kind)
}

// Write renders text and stores it as <dir>/<base><ext>, replacing any
// previous artifact. An empty base uses DefaultBasename. It returns the
// written path.
func Write(dir, base string, kind Kind, text string, layout Layout) (string, error) {
	data, err := Render(kind, text, layout)
	if err != nil {
		return "", err
	}
	if base == "" {
		base = DefaultBasename
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, base+kind.Ext())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", kind, err)
	}
	return path, nil
}
