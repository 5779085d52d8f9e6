package export

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const mmPerPoint = 25.4 / 72

// Layout controls PDF page geometry and typography. Lengths are in
// millimetres, font sizes in points.
type Layout struct {
	PageSize    string  // fpdf page size name: A4, Letter, ...
	Orientation string  // P or L
	Margin      float64 // applied to all four sides
	Font        string  // core font family, used when FontFile is empty
	FontFile    string  // optional TTF for full Unicode coverage
	FontSize    float64
	LineHeight  float64 // line pitch as a multiple of FontSize
	Title       string
}

// DefaultLayout is A4 portrait, 10mm margins, Helvetica 12pt with a 1.2
// line pitch.
func DefaultLayout() Layout {
	return Layout{
		PageSize:    "A4",
		Orientation: "P",
		Margin:      10,
		Font:        "Helvetica",
		FontSize:    12,
		LineHeight:  1.2,
	}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.PageSize == "" {
		l.PageSize = d.PageSize
	}
	if l.Orientation == "" {
		l.Orientation = d.Orientation
	}
	if l.Margin <= 0 {
		l.Margin = d.Margin
	}
	if l.Font == "" {
		l.Font = d.Font
	}
	if l.FontSize <= 0 {
		l.FontSize = d.FontSize
	}
	if l.LineHeight <= 0 {
		l.LineHeight = d.LineHeight
	}
	return l
}

// Pitch returns the distance between two baselines in millimetres.
func (l Layout) Pitch() float64 {
	l = l.withDefaults()
	return l.FontSize * l.LineHeight * mmPerPoint
}

// PDFBytes lays text out as a paginated PDF. Each newline starts a new
// paragraph; blank lines are kept as vertical space. Paragraphs are
// word-wrapped to the printable width and a new page begins whenever the
// next line would cross the bottom margin.
func PDFBytes(text string, layout Layout) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyTarget
	}
	l := layout.withDefaults()

	pdf := fpdf.New(l.Orientation, "mm", l.PageSize, "")
	pdf.SetMargins(l.Margin, l.Margin, l.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("scrawl", true)
	if l.Title != "" {
		pdf.SetTitle(l.Title, true)
	}

	family := l.Font
	translate := func(s string) string { return s }
	if l.FontFile != "" {
		family = "notes"
		pdf.AddUTF8Font(family, "", l.FontFile)
	} else {
		translate = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.SetFont(family, "", l.FontSize)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("pdf font: %w", err)
	}

	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()
	width := pageW - 2*l.Margin
	bottom := pageH - l.Margin
	pitch := l.Pitch()
	measure := func(s string) float64 { return pdf.GetStringWidth(translate(s)) }

	y := l.Margin
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimRight(para, "\r")
		for _, line := range wrap(para, width, measure) {
			if y+pitch > bottom {
				pdf.AddPage()
				y = l.Margin
			}
			y += pitch
			if line != "" {
				pdf.Text(l.Margin, y, translate(line))
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// wrap breaks a paragraph into lines no wider than width. An empty
// paragraph yields one empty line. Words wider than a full line are broken
// between runes.
func wrap(para string, width float64, measure func(string) float64) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	line := ""
	for _, w := range words {
		candidate := w
		if line != "" {
			candidate = line + " " + w
		}
		if measure(candidate) <= width {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
			line = ""
		}
		for measure(w) > width && utf8.RuneCountInString(w) > 1 {
			head, rest := breakWord(w, width, measure)
			lines = append(lines, head)
			w = rest
		}
		line = w
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// breakWord returns the longest leading run of w (at least one rune) that
// fits width, and the remainder.
func breakWord(w string, width float64, measure func(string) float64) (string, string) {
	runes := []rune(w)
	n := 1
	for n < len(runes) && measure(string(runes[:n+1])) <= width {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

// PageCount reports the number of pages in a rendered PDF.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}
