//go:build gui

package main

import (
	"context"
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/metcalfc/scrawl/internal/config"
	"github.com/metcalfc/scrawl/internal/export"
	"github.com/metcalfc/scrawl/internal/highlight"
	"github.com/metcalfc/scrawl/internal/reveal"
	"github.com/metcalfc/scrawl/internal/session"
	"github.com/metcalfc/scrawl/internal/source"
)

var matchTextStyle = widget.RichTextStyle{
	Inline:    true,
	ColorName: theme.ColorNamePrimary,
	TextStyle: fyne.TextStyle{Bold: true},
}

// dispatcher runs session commands off the UI thread and hands their
// messages back to the session on it.
type dispatcher struct {
	s       *session.Session
	refresh func()
}

func (d *dispatcher) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		fyne.Do(func() { d.handle(msg) })
	}()
}

func (d *dispatcher) handle(msg tea.Msg) {
	switch msg := msg.(type) {
	case nil:
		return
	case tea.BatchMsg:
		for _, cmd := range msg {
			d.run(cmd)
		}
		return
	}
	d.run(d.s.Update(msg))
	d.refresh()
}

func segments(spans []highlight.Span) []widget.RichTextSegment {
	segs := make([]widget.RichTextSegment, 0, len(spans))
	for _, sp := range spans {
		style := widget.RichTextStyleInline
		if sp.Match {
			style = matchTextStyle
		}
		segs = append(segs, &widget.TextSegment{Text: sp.Text, Style: style})
	}
	return segs
}

func documentSegments(s *session.Session) []widget.RichTextSegment {
	segs := segments(s.Spans())
	if s.RevealState() == reveal.Complete && s.HasCorrections() {
		segs = append(segs, &widget.TextSegment{Text: "Corrected", Style: widget.RichTextStyleHeading})
		segs = append(segs, segments(s.CorrectedSpans())...)
	}
	return segs
}

func statusText(s *session.Session) string {
	var parts []string
	if label := s.Label(); label != "" {
		parts = append(parts, label)
	}
	if revealed, total := s.RevealProgress(); total > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d", revealed, total))
	}
	switch {
	case s.DictionaryLoading():
		parts = append(parts, "loading dictionary")
	case s.DictionaryErr() != nil:
		parts = append(parts, "no dictionary")
	case s.DictionaryReady():
		parts = append(parts, "spellcheck on")
	}
	if q := s.Query(); q != "" {
		parts = append(parts, fmt.Sprintf("%d matches", s.Matches()))
	}
	if s.Copied() {
		parts = append(parts, "copied")
	}
	return strings.Join(parts, " | ")
}

// runViewer runs the desktop viewer until the window closes or ctx is done.
func runViewer(ctx context.Context, e *env, in input) error {
	s := session.New(sessionConfig(e.cfg.Get()), session.WithLogger(e.log))
	defer s.Close()

	a := app.New()
	w := a.NewWindow("scrawl")
	w.Resize(fyne.NewSize(900, 700))

	body := widget.NewRichText()
	body.Wrapping = fyne.TextWrapWord
	scroll := container.NewVScroll(body)

	status := widget.NewLabel("")
	notice := widget.NewLabel("")
	notice.Wrapping = fyne.TextWrapWord
	progress := widget.NewProgressBarInfinite()
	progress.Hide()

	refresh := func() {
		body.Segments = documentSegments(s)
		body.Refresh()
		if s.RevealState() == reveal.Revealing {
			scroll.ScrollToBottom()
		}
		status.SetText(statusText(s))
		notice.SetText(s.Notice().String())
		if s.Loading() {
			progress.Show()
			progress.Start()
		} else {
			progress.Stop()
			progress.Hide()
		}
	}
	d := &dispatcher{s: s, refresh: refresh}
	act := func(cmd tea.Cmd) {
		d.run(cmd)
		refresh()
	}

	current := in
	upload := func() {
		act(s.Upload(current.label(), e.fetch(current)))
	}

	search := widget.NewEntry()
	search.SetPlaceHolder("Search")
	search.OnChanged = func(q string) {
		s.SetQuery(q)
		refresh()
	}

	openBtn := widget.NewButtonWithIcon("Open", theme.FolderOpenIcon(), func() {
		dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if r == nil {
				return
			}
			path := r.URI().Path()
			r.Close()
			current = input{path: path, image: source.IsImage(path)}
			upload()
		}, w)
	})
	reloadBtn := widget.NewButtonWithIcon("Reload", theme.ViewRefreshIcon(), upload)
	copyBtn := widget.NewButtonWithIcon("Copy", theme.ContentCopyIcon(), func() {
		act(s.Copy())
	})
	txtBtn := widget.NewButtonWithIcon("Export TXT", theme.DocumentSaveIcon(), func() {
		s.Export(export.Text)
		refresh()
	})
	pdfBtn := widget.NewButtonWithIcon("Export PDF", theme.DocumentSaveIcon(), func() {
		s.Export(export.PDF)
		refresh()
	})
	skipBtn := widget.NewButtonWithIcon("Skip", theme.MediaFastForwardIcon(), func() {
		s.SkipReveal()
		refresh()
	})

	toolbar := container.NewHBox(openBtn, reloadBtn, copyBtn, txtBtn, pdfBtn, skipBtn)
	top := container.NewVBox(toolbar, search, progress)
	bottom := container.NewVBox(status, notice)
	w.SetContent(container.NewBorder(top, bottom, nil, nil, scroll))

	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeySlash:
			w.Canvas().Focus(search)
		case fyne.KeyEscape:
			search.SetText("")
			s.ClearNotice()
			refresh()
		case fyne.KeyC:
			act(s.Copy())
		case fyne.KeyT:
			s.Export(export.Text)
			refresh()
		case fyne.KeyP:
			s.Export(export.PDF)
			refresh()
		case fyne.KeyS:
			s.SkipReveal()
			refresh()
		case fyne.KeyR:
			upload()
		case fyne.KeyQ:
			a.Quit()
		}
	})

	if e.cfg.ConfigFileUsed() != "" {
		e.cfg.OnChange(func(c *config.Config) {
			cfg := sessionConfig(c)
			fyne.Do(func() { s.ApplyConfig(cfg) })
		})
		e.cfg.OnError(func(err error) {
			e.log.Warn("config reload rejected", "err", err)
		})
		e.cfg.WatchConfig()
	}

	go func() {
		<-ctx.Done()
		fyne.Do(a.Quit)
	}()

	w.SetOnClosed(s.Close)
	d.run(s.LoadDictionary(e.loadDictionary))
	upload()

	w.ShowAndRun()
	return nil
}
