package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/metcalfc/scrawl/internal/cache"
	"github.com/metcalfc/scrawl/internal/export"
	"github.com/metcalfc/scrawl/internal/highlight"
)

// runCLI executes the root command in an isolated directory and returns
// what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, logLevel, dictAffix, dictWords = "", "", "", ""
	correctReport = false
	highlightQuery, highlightOpen, highlightClose = "", highlight.MarkOpen, highlight.MarkClose
	highlightANSI, highlightCorrected = false, false
	exportFormat, exportDir, exportName, exportRaw = "txt", "", "", false
	ocrCorrect, ocrJSON = false, false
	configOutput, configForce = "yaml", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// sandbox points config, cache and state lookups at a temp dir and returns
// absolute paths to the test dictionary.
func sandbox(t *testing.T) (affix, words string) {
	t.Helper()
	affix, err := filepath.Abs(filepath.Join("internal", "dict", "testdata", "en_US.aff"))
	if err != nil {
		t.Fatal(err)
	}
	words, err = filepath.Abs(filepath.Join("internal", "dict", "testdata", "en_US.dic"))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	chdir(t, dir)
	return affix, words
}

func writeNote(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCorrectCommand(t *testing.T) {
	affix, words := sandbox(t)
	note := writeNote(t, "Helo wrold")

	out, err := runCLI(t, "correct", "--dict-affix", affix, "--dict-words", words, note)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if out != "Hello world\n" {
		t.Errorf("correct printed %q", out)
	}

	out, err = runCLI(t, "correct", "--report", "--dict-affix", affix, "--dict-words", words, note)
	if err != nil {
		t.Fatalf("correct --report: %v", err)
	}
	if !strings.HasPrefix(out, "0\tHelo\tHello") {
		t.Errorf("report = %q", out)
	}
}

func TestCorrectWithoutDictionary(t *testing.T) {
	sandbox(t)
	note := writeNote(t, "Helo   wrold")

	out, err := runCLI(t, "correct", "--dict-affix", "missing.aff", "--dict-words", "missing.dic", note)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if out != "Helo   wrold\n" {
		t.Errorf("text not passed through: %q", out)
	}
}

func TestHighlightCommand(t *testing.T) {
	sandbox(t)
	note := writeNote(t, "The fox and the FOX")

	out, err := runCLI(t, "highlight", "-q", "fox", note)
	if err != nil {
		t.Fatalf("highlight: %v", err)
	}
	if out != "The <mark>fox</mark> and the <mark>FOX</mark>\n" {
		t.Errorf("highlight printed %q", out)
	}

	out, err = runCLI(t, "highlight", "-q", "the", "--open", "[", "--close", "]", note)
	if err != nil {
		t.Fatalf("highlight: %v", err)
	}
	if out != "[The] fox and [the] FOX\n" {
		t.Errorf("highlight printed %q", out)
	}
}

func TestExportCommand(t *testing.T) {
	affix, words := sandbox(t)
	note := writeNote(t, "Helo wrold")
	dir := t.TempDir()

	out, err := runCLI(t, "export", "--dict-affix", affix, "--dict-words", words, "--out", dir, note)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	txt := filepath.Join(dir, "converted-notes.txt")
	if strings.TrimSpace(out) != txt {
		t.Errorf("export printed %q, want %q", out, txt)
	}
	data, err := os.ReadFile(txt)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Hello world" {
		t.Errorf("exported %q", data)
	}

	_, err = runCLI(t, "export", "--raw", "-f", "pdf", "--out", dir, "--name", "raw", note)
	if err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	data, err = os.ReadFile(filepath.Join(dir, "raw.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if pages, err := export.PageCount(data); err != nil || pages != 1 {
		t.Errorf("PageCount = %d, %v", pages, err)
	}

	if _, err := runCLI(t, "export", "-f", "docx", note); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestConfigCommand(t *testing.T) {
	sandbox(t)

	out, err := runCLI(t, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "endpoint: http://127.0.0.1:8000/api/upload/") {
		t.Errorf("yaml output missing OCR endpoint:\n%s", out)
	}

	out, err = runCLI(t, "config", "-o", "json")
	if err != nil {
		t.Fatalf("config -o json: %v", err)
	}
	if !strings.Contains(out, `"basename": "converted-notes"`) {
		t.Errorf("json output missing export basename:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "scrawl.yaml")
	if _, err := runCLI(t, "config", "init", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := runCLI(t, "config", "init", path); err == nil {
		t.Error("config init overwrote an existing file without --force")
	}
	if _, err := runCLI(t, "config", "init", "--force", path); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}

func TestConfigKeysCommand(t *testing.T) {
	sandbox(t)
	out, err := runCLI(t, "config", "keys")
	if err != nil {
		t.Fatalf("config keys: %v", err)
	}
	if !strings.Contains(out, "ocr.endpoint\tSCRAWL_OCR_ENDPOINT\n") {
		t.Errorf("keys output missing ocr.endpoint:\n%s", out)
	}
	if !strings.HasPrefix(out, "copy.reset_after\t") {
		t.Errorf("keys not sorted:\n%s", out)
	}
}

func TestCacheCommands(t *testing.T) {
	sandbox(t)
	const (
		affixURL = "https://dicts.example/en_US.aff"
		wordsURL = "https://dicts.example/en_US.dic"
	)
	store, err := cache.NewStore("")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(affixURL, []byte("TRY abc\n")); err != nil {
		t.Fatal(err)
	}
	flags := []string{"--dict-affix", affixURL, "--dict-words", wordsURL}

	out, err := runCLI(t, append([]string{"cache"}, flags...)...)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	if !strings.HasPrefix(out, store.Dir()+"\n") {
		t.Errorf("cache output does not start with the cache dir:\n%s", out)
	}
	if !strings.Contains(out, affixURL+"\t8 bytes\t") {
		t.Errorf("cached affix file not listed:\n%s", out)
	}
	if !strings.Contains(out, wordsURL+"\tnot cached") {
		t.Errorf("missing word list not reported:\n%s", out)
	}

	out, err = runCLI(t, append([]string{"cache", "clear"}, flags...)...)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if out != "cleared 1 cached files\n" {
		t.Errorf("cache clear printed %q", out)
	}

	reopened, err := cache.NewStore("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Lookup(affixURL); ok {
		t.Error("affix file still cached after clear")
	}
}

func TestRenderSpans(t *testing.T) {
	spans := highlight.Spans("a fox", "fox")
	if got := renderSpans(spans, lipgloss.NewStyle()); got != "a fox" {
		t.Errorf("renderSpans with a plain style = %q", got)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
