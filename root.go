package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metcalfc/scrawl/internal/cache"
	"github.com/metcalfc/scrawl/internal/config"
	"github.com/metcalfc/scrawl/internal/dict"
	"github.com/metcalfc/scrawl/internal/export"
	"github.com/metcalfc/scrawl/internal/logging"
	"github.com/metcalfc/scrawl/internal/ocr"
	"github.com/metcalfc/scrawl/internal/session"
	"github.com/metcalfc/scrawl/internal/source"
)

var (
	cfgFile   string
	logLevel  string
	dictAffix string
	dictWords string
)

var rootCmd = &cobra.Command{
	Use:   "scrawl [file]",
	Short: "View, spell-correct and export handwritten-note OCR text",
	Long: `scrawl shows the text an OCR service extracted from a photo of handwritten
notes. The text is typed out on screen, spell-corrected against a Hunspell
dictionary, searchable, and exportable to a text file or a PDF.

The input is an image (sent to the OCR service), a text, Markdown or EPUB
file, or text piped on stdin.

Controls:
  /        Search            esc   Leave search
  c        Copy text         s     Skip typing animation
  t        Export .txt       p     Export .pdf
  r        Reload source     q     Quit`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer env.Close()

		in, err := resolveInput(args)
		if err != nil {
			return err
		}
		return runViewer(cmd.Context(), env, in)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./scrawl.yaml or $XDG_CONFIG_HOME/scrawl/scrawl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&dictAffix, "dict-affix", "", "dictionary affix file path or URL")
	rootCmd.PersistentFlags().StringVar(&dictWords, "dict-words", "", "dictionary word list path or URL")
	rootCmd.SetVersionTemplate(fmt.Sprintf("scrawl %s (commit: %s, built: %s)\n", version, commit, date))
}

// env is the per-invocation wiring shared by the viewer and subcommands.
type env struct {
	cfg     *config.Manager
	log     *slog.Logger
	logFile io.Closer
}

// setup loads configuration, applies flag overrides and builds the logger.
// The viewer owns the terminal, so it logs to a file instead of stderr.
func setup(cmd *cobra.Command, logToFile bool) (*env, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	overrides := map[string]string{
		"log.level":        logLevel,
		"dictionary.affix": dictAffix,
		"dictionary.words": dictWords,
	}
	for key, val := range overrides {
		if val == "" {
			continue
		}
		if err := mgr.Set(key, val); err != nil {
			return nil, err
		}
	}

	cfg := mgr.Get()
	e := &env{cfg: mgr}
	var w io.Writer = cmd.ErrOrStderr()
	if logToFile {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		e.logFile = f
		w = f
	}
	e.log, err = logging.Setup(w, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		e.Close()
		return nil, err
	}
	if used := mgr.ConfigFileUsed(); used != "" {
		e.log.Debug("config loaded", "file", used)
	}
	return e, nil
}

func (e *env) Close() {
	if e.logFile != nil {
		e.logFile.Close()
	}
}

func (e *env) ocrClient() *ocr.Client {
	c := e.cfg.Get().OCR
	return ocr.NewClient(ocr.Config{
		Endpoint:   c.Endpoint,
		Field:      c.Field,
		Timeout:    c.Timeout,
		Attempts:   c.Attempts,
		RetryDelay: c.RetryDelay,
		Logger:     e.log,
	})
}

// loadDictionary opens the configured dictionary. Remote sources go
// through the on-disk cache.
func (e *env) loadDictionary(ctx context.Context) (*dict.Dictionary, error) {
	c := e.cfg.Get().Dictionary
	opts := []dict.Option{dict.WithLogger(e.log)}
	store, err := e.cacheStore()
	if err != nil {
		e.log.Warn("dictionary cache disabled", "err", err)
	} else {
		opts = append(opts, dict.WithCache(store))
	}
	return dict.Open(ctx, c.Affix, c.Words, opts...)
}

func (e *env) cacheStore() (*cache.Store, error) {
	return cache.NewStore(e.cfg.Get().Dictionary.CacheDir)
}

// dictionarySources lists the configured affix and word list locations.
func (e *env) dictionarySources() []string {
	c := e.cfg.Get().Dictionary
	return []string{c.Affix, c.Words}
}

func layoutFrom(c config.PDFConfig) export.Layout {
	orientation := strings.ToUpper(c.Orientation)
	if orientation != "" {
		orientation = orientation[:1]
	}
	return export.Layout{
		PageSize:    c.PageSize,
		Orientation: orientation,
		Margin:      c.Margin,
		Font:        c.Font,
		FontFile:    c.FontFile,
		FontSize:    c.FontSize,
		LineHeight:  c.LineHeight,
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		RevealInterval: cfg.Reveal.Interval,
		CopyResetAfter: cfg.Copy.ResetAfter,
		ExportDir:      cfg.Export.Dir,
		ExportBasename: cfg.Export.Basename,
		Layout:         layoutFrom(cfg.PDF),
	}
}

// input is where raw text comes from: an image for the OCR service, a
// document file, or text already read from stdin.
type input struct {
	path  string
	image bool
	text  string
}

func (in input) label() string {
	if in.path == "" {
		return "stdin"
	}
	return filepath.Base(in.path)
}

var errNoInput = errors.New("no input provided. Provide a file or pipe text to stdin")

func resolveInput(args []string) (input, error) {
	if len(args) > 0 && args[0] != "-" {
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			return input{}, fmt.Errorf("failed to read file '%s': %w", path, err)
		}
		return input{path: path, image: source.IsImage(path)}, nil
	}

	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return input{}, errNoInput
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return input{}, fmt.Errorf("error reading stdin: %w", err)
	}
	return input{text: source.Normalize(data)}, nil
}

// fetch returns the function that produces raw text for in. Calling it
// again re-reads the file or re-uploads the image.
func (e *env) fetch(in input) session.FetchFunc {
	switch {
	case in.image:
		client := e.ocrClient()
		return func(ctx context.Context) (string, error) {
			e.log.Info("sending image to OCR service", "file", in.path, "endpoint", client.Endpoint())
			res, err := client.ExtractFile(ctx, in.path)
			if err != nil {
				return "", err
			}
			return res.Text, nil
		}
	case in.path != "":
		return func(context.Context) (string, error) {
			return source.ExtractText(in.path)
		}
	default:
		return func(context.Context) (string, error) {
			return in.text, nil
		}
	}
}
