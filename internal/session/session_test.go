package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/metcalfc/scrawl/internal/dict"
	"github.com/metcalfc/scrawl/internal/export"
	"github.com/metcalfc/scrawl/internal/reveal"
)

var (
	testDictOnce sync.Once
	testDict     *dict.Dictionary
	testDictErr  error
)

func loadTestDict(t *testing.T) *dict.Dictionary {
	t.Helper()
	testDictOnce.Do(func() {
		dir := filepath.Join("..", "dict", "testdata")
		testDict, testDictErr = dict.Open(context.Background(),
			filepath.Join(dir, "en_US.aff"), filepath.Join(dir, "en_US.dic"))
	})
	if testDictErr != nil {
		t.Fatalf("load test dictionary: %v", testDictErr)
	}
	return testDict
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := New(Config{
		RevealInterval: time.Millisecond,
		CopyResetAfter: time.Millisecond,
		ExportDir:      t.TempDir(),
	})
	t.Cleanup(s.Close)
	return s
}

// drain runs cmd and every follow-up command to completion, feeding each
// message back into the session.
func drain(t *testing.T, s *Session, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 10000 {
			t.Fatal("commands did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		queue = append(queue, s.Update(msg))
	}
}

// collect runs cmd once, flattening batches, without feeding the session.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func withDictionary(t *testing.T, s *Session) {
	t.Helper()
	d := loadTestDict(t)
	drain(t, s, s.LoadDictionary(func(context.Context) (*dict.Dictionary, error) {
		return d, nil
	}))
	if !s.DictionaryReady() {
		t.Fatal("dictionary not ready")
	}
}

func TestCorrectionScenarios(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"misspelled tokens replaced", "Helo wrold", "Hello world"},
		{"recognized tokens kept", "Hello, world!", "Hello, world!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t)
			withDictionary(t, s)
			drain(t, s, s.SetRawText(tt.raw))

			if got := s.Corrected(); got != tt.want {
				t.Errorf("Corrected() = %q, want %q", got, tt.want)
			}
			if got := s.Raw(); got != tt.raw {
				t.Errorf("Raw() = %q, want %q", got, tt.raw)
			}
			if got := s.Revealed(); got != tt.raw {
				t.Errorf("Revealed() = %q after reveal, want %q", got, tt.raw)
			}
			if s.RevealState() != reveal.Complete {
				t.Errorf("RevealState() = %v", s.RevealState())
			}
		})
	}
}

func TestHighlightRevealed(t *testing.T) {
	s := newTestSession(t)
	drain(t, s, s.SetRawText("The quick fox"))

	for _, q := range []string{"qu", "QU"} {
		s.SetQuery(q)
		if got, want := s.Highlighted(), "The <mark>qu</mark>ick fox"; got != want {
			t.Errorf("query %q: Highlighted() = %q, want %q", q, got, want)
		}
		if s.Matches() != 1 {
			t.Errorf("query %q: Matches() = %d", q, s.Matches())
		}
	}

	s.SetQuery("")
	if got := s.Highlighted(); got != "The quick fox" {
		t.Errorf("empty query: Highlighted() = %q", got)
	}
}

func TestHighlightFollowsReveal(t *testing.T) {
	s := newTestSession(t)
	s.SetRawText("The quick fox")
	s.SetQuery("quick")

	// Reveal "The qu" only.
	for i := 0; i < 6; i++ {
		s.Update(reveal.TickMsg{ID: s.reveal.ID()})
	}
	if got := s.Revealed(); got != "The qu" {
		t.Fatalf("Revealed() = %q", got)
	}
	if got := s.Highlighted(); got != "The qu" {
		t.Errorf("partial match highlighted: %q", got)
	}
}

func TestEmptyRawText(t *testing.T) {
	s := newTestSession(t)
	withDictionary(t, s)

	cmd := s.SetRawText("")
	if cmd != nil {
		t.Error("empty text dispatched work")
	}
	if s.RevealState() != reveal.Idle {
		t.Errorf("RevealState() = %v, want idle", s.RevealState())
	}
	if s.Corrected() != "" {
		t.Errorf("Corrected() = %q", s.Corrected())
	}
	for _, kind := range []export.Kind{export.Text, export.PDF} {
		if _, err := s.Export(kind); !errors.Is(err, export.ErrEmptyTarget) {
			t.Errorf("Export(%v) error = %v, want ErrEmptyTarget", kind, err)
		}
		if !errors.Is(s.Notice().Err, export.ErrEmptyTarget) {
			t.Errorf("notice = %v", s.Notice())
		}
	}
	entries, _ := os.ReadDir(s.Config().ExportDir)
	if len(entries) != 0 {
		t.Errorf("empty export wrote %d files", len(entries))
	}
}

func TestNewTextSupersedesReveal(t *testing.T) {
	s := newTestSession(t)
	first := s.SetRawText("first text")
	var firstTick reveal.TickMsg
	for _, msg := range collect(first) {
		if tick, ok := msg.(reveal.TickMsg); ok {
			firstTick = tick
		}
	}
	s.Update(firstTick)
	s.Update(reveal.TickMsg{ID: s.reveal.ID()})
	if got := s.Revealed(); got != "fi" {
		t.Fatalf("Revealed() = %q, want %q", got, "fi")
	}

	second := s.SetRawText("second")
	if s.Revealed() != "" {
		t.Errorf("Revealed() = %q after new text, want empty", s.Revealed())
	}
	s.Update(firstTick)
	if s.Revealed() != "" {
		t.Errorf("stale tick advanced reveal to %q", s.Revealed())
	}

	drain(t, s, second)
	if s.Revealed() != "second" {
		t.Errorf("Revealed() = %q, want %q", s.Revealed(), "second")
	}
}

func TestLateCorrectionDropped(t *testing.T) {
	s := newTestSession(t)
	withDictionary(t, s)

	old := collect(s.SetRawText("Helo wrold"))
	newer := s.SetRawText("teh fox")

	for _, msg := range old {
		if _, ok := msg.(CorrectedMsg); ok {
			s.Update(msg)
		}
	}
	if s.Corrected() != "" {
		t.Errorf("stale correction applied: %q", s.Corrected())
	}

	drain(t, s, newer)
	if got := s.Corrected(); got != "the fox" {
		t.Errorf("Corrected() = %q, want %q", got, "the fox")
	}
}

func TestDictionaryArrivesAfterText(t *testing.T) {
	s := newTestSession(t)
	drain(t, s, s.SetRawText("Helo wrold"))
	if got := s.Corrected(); got != "Helo wrold" {
		t.Fatalf("Corrected() without dictionary = %q, want pass-through", got)
	}
	if got := s.Text(); got != "Helo wrold" {
		t.Errorf("Text() = %q", got)
	}

	withDictionary(t, s)
	if got := s.Corrected(); got != "Hello world" {
		t.Errorf("Corrected() after dictionary = %q, want %q", got, "Hello world")
	}
	if got := s.Text(); got != "Hello world" {
		t.Errorf("Text() = %q, want corrected text", got)
	}
}

func TestPassThroughArrivesAfterDictionaryCorrection(t *testing.T) {
	s := newTestSession(t)
	held := collect(s.SetRawText("Helo wrold"))

	withDictionary(t, s)
	if got := s.Corrected(); got != "Hello world" {
		t.Fatalf("Corrected() = %q, want %q", got, "Hello world")
	}

	applied := 0
	for _, msg := range held {
		if _, ok := msg.(CorrectedMsg); ok {
			s.Update(msg)
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("held back %d corrections, want 1", applied)
	}
	if got := s.Corrected(); got != "Hello world" {
		t.Errorf("uncorrected result overwrote the dictionary pass: %q", got)
	}
}

func TestHasCorrections(t *testing.T) {
	s := newTestSession(t)
	if s.HasCorrections() {
		t.Error("empty session reports corrections")
	}
	withDictionary(t, s)

	drain(t, s, s.SetRawText("Hello\nworld"))
	if got := s.Corrected(); got != "Hello world" {
		t.Fatalf("Corrected() = %q", got)
	}
	if s.HasCorrections() {
		t.Error("line breaks alone counted as a correction")
	}

	drain(t, s, s.SetRawText("Helo\nwrold"))
	if !s.HasCorrections() {
		t.Errorf("HasCorrections() = false, corrected %q", s.Corrected())
	}
}

func TestDictionaryUnavailable(t *testing.T) {
	s := newTestSession(t)
	cmd := s.LoadDictionary(func(context.Context) (*dict.Dictionary, error) {
		return nil, dict.ErrUnavailable
	})
	if !s.DictionaryLoading() {
		t.Error("DictionaryLoading() = false while load pending")
	}
	drain(t, s, cmd)
	if s.DictionaryReady() || s.DictionaryLoading() {
		t.Error("dictionary state wrong after failed load")
	}
	if !errors.Is(s.DictionaryErr(), dict.ErrUnavailable) {
		t.Errorf("DictionaryErr() = %v", s.DictionaryErr())
	}
	if !s.Notice().Empty() {
		t.Errorf("dictionary failure posted a notice: %v", s.Notice())
	}

	drain(t, s, s.SetRawText("Helo wrold"))
	if s.Corrected() != "Helo wrold" {
		t.Errorf("Corrected() = %q, want pass-through", s.Corrected())
	}
}

func TestUpload(t *testing.T) {
	s := newTestSession(t)
	withDictionary(t, s)
	drain(t, s, s.SetRawText("old text"))

	cmd := s.Upload("note.png", func(context.Context) (string, error) {
		return "Helo wrold", nil
	})
	if !s.Loading() {
		t.Error("Loading() = false during upload")
	}
	if s.Raw() != "" || s.Corrected() != "" || s.Revealed() != "" {
		t.Error("upload did not clear document text")
	}

	drain(t, s, cmd)
	if s.Loading() {
		t.Error("Loading() = true after upload")
	}
	if s.Raw() != "Helo wrold" || s.Corrected() != "Hello world" {
		t.Errorf("after upload raw %q corrected %q", s.Raw(), s.Corrected())
	}
	if s.Label() != "note.png" {
		t.Errorf("Label() = %q", s.Label())
	}
}

func TestUploadFailure(t *testing.T) {
	s := newTestSession(t)
	boom := errors.New("service down")
	drain(t, s, s.Upload("note.png", func(context.Context) (string, error) {
		return "", boom
	}))

	if s.Loading() {
		t.Error("Loading() = true after failure")
	}
	if !errors.Is(s.Notice().Err, boom) {
		t.Errorf("notice = %v", s.Notice())
	}
	if s.Raw() != "" || s.RevealState() != reveal.Idle {
		t.Error("failed upload left text behind")
	}

	// The session stays usable.
	drain(t, s, s.SetRawText("still works"))
	if s.Revealed() != "still works" {
		t.Errorf("Revealed() = %q", s.Revealed())
	}
}

func TestUploadSuperseded(t *testing.T) {
	s := newTestSession(t)

	var firstCtx context.Context
	first := s.Upload("a.png", func(ctx context.Context) (string, error) {
		firstCtx = ctx
		return "first", nil
	})
	second := s.Upload("b.png", func(context.Context) (string, error) {
		return "second", nil
	})

	drain(t, s, first)
	if firstCtx.Err() == nil {
		t.Error("superseded upload context not canceled")
	}
	if s.Raw() != "" || !s.Loading() {
		t.Errorf("stale upload applied: raw %q loading %v", s.Raw(), s.Loading())
	}

	drain(t, s, second)
	if s.Raw() != "second" {
		t.Errorf("Raw() = %q, want %q", s.Raw(), "second")
	}
}

func TestCopy(t *testing.T) {
	var clip string
	clipboardWrite = func(text string) error {
		clip = text
		return nil
	}
	t.Cleanup(func() { clipboardWrite = defaultClipboardWrite })

	s := newTestSession(t)
	withDictionary(t, s)
	drain(t, s, s.SetRawText("Helo wrold"))

	cmd := s.Copy()
	if clip != "Hello world" {
		t.Errorf("clipboard = %q, want corrected text", clip)
	}
	if !s.Copied() {
		t.Error("Copied() = false after copy")
	}
	drain(t, s, cmd)
	if s.Copied() {
		t.Error("Copied() still true after reset delay")
	}
}

func TestCopyResetSuperseded(t *testing.T) {
	clipboardWrite = func(string) error { return nil }
	t.Cleanup(func() { clipboardWrite = defaultClipboardWrite })

	s := newTestSession(t)
	drain(t, s, s.SetRawText("text"))
	first := s.Copy()
	second := s.Copy()

	// The first copy's timer fires while the second copy is still fresh.
	drain(t, s, first)
	if !s.Copied() {
		t.Error("earlier reset cleared a newer copy")
	}
	drain(t, s, second)
	if s.Copied() {
		t.Error("Copied() not cleared")
	}
}

func TestCopyFailures(t *testing.T) {
	clipboardWrite = func(string) error { return errors.New("no display") }
	t.Cleanup(func() { clipboardWrite = defaultClipboardWrite })

	s := newTestSession(t)
	if cmd := s.Copy(); cmd != nil || s.Copied() {
		t.Error("copy of empty text succeeded")
	}
	if !errors.Is(s.Notice().Err, export.ErrEmptyTarget) {
		t.Errorf("notice = %v", s.Notice())
	}

	drain(t, s, s.SetRawText("text"))
	if cmd := s.Copy(); cmd != nil || s.Copied() {
		t.Error("denied copy reported success")
	}
	if !errors.Is(s.Notice().Err, ErrClipboardDenied) {
		t.Errorf("notice = %v", s.Notice())
	}
}

func TestExport(t *testing.T) {
	s := newTestSession(t)
	withDictionary(t, s)
	drain(t, s, s.SetRawText("Helo wrold"))

	path, err := s.Export(export.Text)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Base(path) != "converted-notes.txt" {
		t.Errorf("path = %s", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "Hello world" {
		t.Errorf("exported %q", data)
	}
	if !strings.Contains(s.Notice().String(), path) {
		t.Errorf("notice = %q", s.Notice())
	}

	path, err = s.Export(export.PDF)
	if err != nil {
		t.Fatalf("Export pdf: %v", err)
	}
	if filepath.Base(path) != "converted-notes.pdf" {
		t.Errorf("path = %s", path)
	}
}

func TestClose(t *testing.T) {
	s := newTestSession(t)
	withDictionary(t, s)

	var fetchCtx context.Context
	upload := s.Upload("a.png", func(ctx context.Context) (string, error) {
		fetchCtx = ctx
		return "late", nil
	})
	text := collect(s.SetRawText("Helo wrold"))

	s.Close()
	drain(t, s, upload)
	for _, msg := range text {
		s.Update(msg)
	}

	if fetchCtx.Err() == nil {
		t.Error("Close did not cancel the upload")
	}
	if s.Revealed() != "" || s.Corrected() != "" {
		t.Errorf("results applied after Close: revealed %q corrected %q", s.Revealed(), s.Corrected())
	}
	if s.SetRawText("x") != nil {
		t.Error("SetRawText after Close dispatched work")
	}
}

func TestApplyConfig(t *testing.T) {
	s := newTestSession(t)
	s.ApplyConfig(Config{RevealInterval: 5 * time.Millisecond})
	if got := s.reveal.Interval(); got != 5*time.Millisecond {
		t.Errorf("reveal interval = %v", got)
	}
	if got := s.Config().CopyResetAfter; got != DefaultCopyResetAfter {
		t.Errorf("CopyResetAfter = %v, want default", got)
	}
}
