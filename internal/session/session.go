// Package session owns the viewer's mutable state: the raw OCR text, its
// spell-corrected form, the typing reveal, the search query and the
// transient copy/loading/notice flags.
//
// A Session is driven from a single event loop. Operations that start
// asynchronous work return a tea.Cmd; the work's result comes back as a
// message passed to Update. Every async result carries the generation it
// was started for, and results from a superseded generation are dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/metcalfc/scrawl/internal/dict"
	"github.com/metcalfc/scrawl/internal/export"
	"github.com/metcalfc/scrawl/internal/highlight"
	"github.com/metcalfc/scrawl/internal/reveal"
	"github.com/metcalfc/scrawl/internal/spell"
)

// ErrClipboardDenied is reported when the clipboard cannot be written.
var ErrClipboardDenied = errors.New("clipboard unavailable")

// DefaultCopyResetAfter is how long the copied flag stays set.
const DefaultCopyResetAfter = 2 * time.Second

var (
	defaultClipboardWrite = clipboard.WriteAll
	clipboardWrite        = defaultClipboardWrite
)

// Config holds the tunables a session reads on every operation.
type Config struct {
	RevealInterval time.Duration
	CopyResetAfter time.Duration
	ExportDir      string
	ExportBasename string
	Layout         export.Layout
}

// Notice is a user-visible message. Err is set for failures.
type Notice struct {
	Message string
	Err     error
}

// Empty reports whether there is nothing to show.
func (n Notice) Empty() bool {
	return n.Message == "" && n.Err == nil
}

func (n Notice) String() string {
	if n.Err != nil {
		if n.Message == "" {
			return n.Err.Error()
		}
		return n.Message + ": " + n.Err.Error()
	}
	return n.Message
}

// LoadFunc produces a dictionary, typically by calling dict.Open.
type LoadFunc func(ctx context.Context) (*dict.Dictionary, error)

// FetchFunc produces raw text for a source, typically by uploading an image
// to the OCR service.
type FetchFunc func(ctx context.Context) (string, error)

// DictionaryLoadedMsg carries the result of LoadDictionary.
type DictionaryLoadedMsg struct {
	Dict *dict.Dictionary
	Err  error
}

// CorrectedMsg carries the corrected form of the raw text of generation Gen.
// Seq identifies the correction pass; a text is corrected again when the
// dictionary changes, and only the latest pass is applied.
type CorrectedMsg struct {
	Gen  uint64
	Seq  uint64
	Text string
}

// UploadResultMsg carries the outcome of the fetch started for upload Gen.
type UploadResultMsg struct {
	Gen   uint64
	Label string
	Text  string
	Err   error
}

type copyResetMsg struct {
	gen uint64
}

// Session is the presentation state of one viewer window.
type Session struct {
	cfg Config
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	dict        *dict.Dictionary
	dictErr     error
	dictLoading bool

	raw       string
	corrected string
	reveal    *reveal.Scheduler
	gen       uint64
	corrSeq   uint64

	query string

	loading      bool
	uploadGen    uint64
	cancelUpload context.CancelFunc
	label        string

	copied  bool
	copyGen uint64

	notice Notice
	closed bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns an empty session.
func New(cfg Config, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		log:    slog.Default(),
		ctx:    ctx,
		cancel: cancel,
		reveal: reveal.New(cfg.RevealInterval),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ApplyConfig(cfg)
	return s
}

// ApplyConfig replaces the session's tunables. A running reveal keeps its
// position and continues at the new interval.
func (s *Session) ApplyConfig(cfg Config) {
	if cfg.CopyResetAfter <= 0 {
		cfg.CopyResetAfter = DefaultCopyResetAfter
	}
	if cfg.RevealInterval <= 0 {
		cfg.RevealInterval = reveal.DefaultInterval
	}
	s.cfg = cfg
	s.reveal.SetInterval(cfg.RevealInterval)
}

// Config returns the current tunables.
func (s *Session) Config() Config {
	return s.cfg
}

// SetRawText replaces the document text. Prior corrected, revealed and
// copied state is cleared, the reveal restarts from the first character
// and correction is dispatched in the background.
func (s *Session) SetRawText(text string) tea.Cmd {
	if s.closed {
		return nil
	}
	s.gen++
	s.raw = text
	s.corrected = ""
	s.copied = false
	s.copyGen++

	s.log.Debug("new raw text", "gen", s.gen, "runes", len([]rune(text)))
	return tea.Batch(s.reveal.Start(text), s.correct())
}

// correct schedules correction of the current raw text.
func (s *Session) correct() tea.Cmd {
	if s.raw == "" {
		return nil
	}
	s.corrSeq++
	gen, seq, raw, d := s.gen, s.corrSeq, s.raw, s.dict
	return func() tea.Msg {
		return CorrectedMsg{Gen: gen, Seq: seq, Text: spell.Correct(raw, d)}
	}
}

// LoadDictionary runs load in the background. While it runs, correction
// passes text through unchanged; when it completes, the current raw text
// is corrected again.
func (s *Session) LoadDictionary(load LoadFunc) tea.Cmd {
	if s.closed || load == nil {
		return nil
	}
	s.dictLoading = true
	ctx := s.ctx
	return func() tea.Msg {
		d, err := load(ctx)
		return DictionaryLoadedMsg{Dict: d, Err: err}
	}
}

// Upload clears the document and fetches new raw text. A newer upload
// supersedes an older one; the older fetch's context is canceled and its
// result is ignored.
func (s *Session) Upload(label string, fetch FetchFunc) tea.Cmd {
	if s.closed || fetch == nil {
		return nil
	}
	if s.cancelUpload != nil {
		s.cancelUpload()
	}
	s.clear()
	s.uploadGen++
	s.loading = true
	s.label = label
	s.notice = Notice{}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelUpload = cancel
	gen := s.uploadGen
	s.log.Info("fetching text", "source", label, "upload", gen)
	return func() tea.Msg {
		text, err := fetch(ctx)
		return UploadResultMsg{Gen: gen, Label: label, Text: text, Err: err}
	}
}

func (s *Session) clear() {
	s.gen++
	s.raw = ""
	s.corrected = ""
	s.copied = false
	s.copyGen++
	s.reveal.Cancel()
}

// Update applies an async result to the session and returns any follow-up
// command. Messages the session does not own are ignored.
func (s *Session) Update(msg tea.Msg) tea.Cmd {
	if s.closed {
		return nil
	}
	switch msg := msg.(type) {
	case reveal.TickMsg:
		return s.reveal.Update(msg)

	case CorrectedMsg:
		if msg.Gen != s.gen || msg.Seq != s.corrSeq {
			s.log.Debug("dropping stale correction", "gen", msg.Gen, "seq", msg.Seq, "current", s.gen)
			return nil
		}
		s.corrected = msg.Text
		return nil

	case DictionaryLoadedMsg:
		s.dictLoading = false
		if msg.Err != nil {
			s.dictErr = msg.Err
			s.log.Warn("dictionary unavailable, correction disabled", "err", msg.Err)
			return nil
		}
		s.dict = msg.Dict
		s.dictErr = nil
		s.log.Info("dictionary ready", "forms", msg.Dict.Size())
		return s.correct()

	case UploadResultMsg:
		if msg.Gen != s.uploadGen {
			s.log.Debug("dropping stale upload result", "upload", msg.Gen, "current", s.uploadGen)
			return nil
		}
		s.loading = false
		s.cancelUpload = nil
		if msg.Err != nil {
			s.log.Error("fetch failed", "source", msg.Label, "err", msg.Err)
			s.notice = Notice{Message: "could not read " + msg.Label, Err: msg.Err}
			return nil
		}
		return s.SetRawText(msg.Text)

	case copyResetMsg:
		if msg.gen == s.copyGen {
			s.copied = false
		}
		return nil
	}
	return nil
}

// SetQuery sets the search query. An empty query turns highlighting off.
func (s *Session) SetQuery(q string) {
	s.query = q
}

// Query returns the search query.
func (s *Session) Query() string {
	return s.query
}

// Highlighted returns the revealed text with query matches wrapped in
// <mark> tags.
func (s *Session) Highlighted() string {
	return highlight.Highlight(s.Revealed(), s.query)
}

// Spans splits the revealed text into query matches and the rest.
func (s *Session) Spans() []highlight.Span {
	return highlight.Spans(s.Revealed(), s.query)
}

// CorrectedSpans splits the corrected text into query matches and the rest.
func (s *Session) CorrectedSpans() []highlight.Span {
	return highlight.Spans(s.corrected, s.query)
}

// Matches counts query matches in the revealed text.
func (s *Session) Matches() int {
	return highlight.Count(s.Revealed(), s.query)
}

// Text returns the text export and copy operate on.
func (s *Session) Text() string {
	return export.Source(s.corrected, s.raw)
}

// Export writes the current text as kind into the configured directory and
// returns the artifact path. Failures are also posted as a notice.
func (s *Session) Export(kind export.Kind) (string, error) {
	layout := s.cfg.Layout
	if layout.Title == "" {
		layout.Title = s.label
	}
	path, err := export.Write(s.cfg.ExportDir, s.cfg.ExportBasename, kind, s.Text(), layout)
	if err != nil {
		if errors.Is(err, export.ErrEmptyTarget) {
			s.log.Info("export skipped, no text", "format", kind)
		} else {
			s.log.Error("export failed", "format", kind, "err", err)
		}
		s.notice = Notice{Message: "export " + kind.String() + " failed", Err: err}
		return "", err
	}
	s.log.Info("exported", "format", kind, "path", path)
	s.notice = Notice{Message: "saved " + path}
	return path, nil
}

// Copy writes the current text to the clipboard. On success the copied
// flag is set and the returned command clears it after the configured
// delay.
func (s *Session) Copy() tea.Cmd {
	text := s.Text()
	if text == "" {
		s.notice = Notice{Message: "copy failed", Err: export.ErrEmptyTarget}
		return nil
	}
	if err := clipboardWrite(text); err != nil {
		s.log.Warn("clipboard write failed", "err", err)
		s.notice = Notice{Message: "copy failed", Err: fmt.Errorf("%w: %v", ErrClipboardDenied, err)}
		return nil
	}
	s.copied = true
	s.copyGen++
	s.notice = Notice{Message: "copied to clipboard"}
	gen := s.copyGen
	return tea.Tick(s.cfg.CopyResetAfter, func(time.Time) tea.Msg {
		return copyResetMsg{gen: gen}
	})
}

// Close cancels the reveal and any in-flight fetch. Every pending result
// becomes stale and later operations are no-ops.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.reveal.Cancel()
	s.gen++
	s.uploadGen++
	s.copyGen++
	s.cancel()
}

// Raw returns the verbatim OCR text.
func (s *Session) Raw() string { return s.raw }

// Corrected returns the spell-corrected text, or "" until correction
// finishes.
func (s *Session) Corrected() string { return s.corrected }

// HasCorrections reports whether correction replaced any token of the raw
// text. Whitespace differences do not count.
func (s *Session) HasCorrections() bool {
	if s.corrected == "" {
		return false
	}
	return strings.Join(strings.Fields(s.corrected), " ") != strings.Join(strings.Fields(s.raw), " ")
}

// Revealed returns the prefix of the raw text shown so far.
func (s *Session) Revealed() string { return s.reveal.Revealed() }

// RevealState returns the reveal scheduler's state.
func (s *Session) RevealState() reveal.State { return s.reveal.State() }

// RevealProgress returns revealed and total rune counts.
func (s *Session) RevealProgress() (int, int) { return s.reveal.Progress() }

// SkipReveal shows the whole raw text at once.
func (s *Session) SkipReveal() { s.reveal.Finish() }

// Loading reports whether a fetch is in flight.
func (s *Session) Loading() bool { return s.loading }

// Copied reports whether the text was copied recently.
func (s *Session) Copied() bool { return s.copied }

// Label names the current source.
func (s *Session) Label() string { return s.label }

// Notice returns the latest user-visible message.
func (s *Session) Notice() Notice { return s.notice }

// ClearNotice dismisses the current notice.
func (s *Session) ClearNotice() { s.notice = Notice{} }

// DictionaryReady reports whether a dictionary is loaded.
func (s *Session) DictionaryReady() bool { return s.dict.Loaded() }

// DictionaryLoading reports whether a dictionary load is in flight.
func (s *Session) DictionaryLoading() bool { return s.dictLoading }

// DictionaryErr returns the last dictionary load error.
func (s *Session) DictionaryErr() error { return s.dictErr }

// Misspellings lists the unrecognized tokens of the raw text.
func (s *Session) Misspellings() []spell.Misspelling {
	return spell.Find(s.raw, s.dict)
}
