package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/metcalfc/scrawl/internal/config"
	"github.com/metcalfc/scrawl/internal/dict"
	"github.com/metcalfc/scrawl/internal/export"
	"github.com/metcalfc/scrawl/internal/highlight"
	"github.com/metcalfc/scrawl/internal/spell"
)

var (
	correctReport bool

	highlightQuery     string
	highlightOpen      string
	highlightClose     string
	highlightANSI      bool
	highlightCorrected bool

	exportFormat string
	exportDir    string
	exportName   string
	exportRaw    bool

	ocrCorrect bool
	ocrJSON    bool

	configOutput string
	configForce  bool
)

var correctCmd = &cobra.Command{
	Use:   "correct [file]",
	Short: "Spell-correct text and print it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		text, err := readText(cmd.Context(), env, args)
		if err != nil {
			return err
		}
		d := env.dictionaryOrNil(cmd.Context())
		out := cmd.OutOrStdout()

		if correctReport {
			for _, m := range spell.Find(text, d) {
				fmt.Fprintf(out, "%d\t%s\t%s\n", m.Index, m.Token, strings.Join(m.Suggestions, ", "))
			}
			return nil
		}
		fmt.Fprintln(out, spell.Correct(text, d))
		return nil
	},
}

var highlightStyle = lipgloss.NewStyle().Reverse(true).Bold(true)

var highlightCmd = &cobra.Command{
	Use:   "highlight [file]",
	Short: "Mark case-insensitive matches of a query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		text, err := readText(cmd.Context(), env, args)
		if err != nil {
			return err
		}
		if highlightCorrected {
			text = spell.Correct(text, env.dictionaryOrNil(cmd.Context()))
		}

		out := cmd.OutOrStdout()
		if highlightANSI {
			fmt.Fprintln(out, renderSpans(highlight.Spans(text, highlightQuery), highlightStyle))
		} else {
			fmt.Fprintln(out, highlight.Mark(text, highlightQuery, highlightOpen, highlightClose))
		}
		env.log.Debug("highlighted", "query", highlightQuery, "matches", highlight.Count(text, highlightQuery))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the corrected text to converted-notes.txt or .pdf",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		kind, err := export.ParseKind(exportFormat)
		if err != nil {
			return err
		}
		raw, err := readText(cmd.Context(), env, args)
		if err != nil {
			return err
		}
		corrected := ""
		if !exportRaw {
			corrected = spell.Correct(raw, env.dictionaryOrNil(cmd.Context()))
		}

		cfg := env.cfg.Get()
		dir, base := cfg.Export.Dir, cfg.Export.Basename
		if exportDir != "" {
			dir = exportDir
		}
		if exportName != "" {
			base = exportName
		}
		layout := layoutFrom(cfg.PDF)
		if len(args) > 0 {
			layout.Title = filepath.Base(args[0])
		}

		path, err := export.Write(dir, base, kind, export.Source(corrected, raw), layout)
		if err != nil {
			return err
		}
		if kind == export.PDF {
			if data, err := os.ReadFile(path); err == nil {
				if pages, err := export.PageCount(data); err == nil {
					env.log.Info("pdf written", "path", path, "pages", pages)
				} else {
					env.log.Warn("could not verify pdf", "path", path, "err", err)
				}
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var ocrCmd = &cobra.Command{
	Use:   "ocr <image>",
	Short: "Send an image to the OCR service and print the text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.ocrClient().ExtractFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		text := res.Text
		if ocrCorrect {
			text = spell.Correct(text, env.dictionaryOrNil(cmd.Context()))
		}

		out := cmd.OutOrStdout()
		if ocrJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{
				"image_url":      res.ImageURL,
				"extracted_text": text,
			})
		}
		fmt.Fprintln(out, text)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		out := cmd.OutOrStdout()

		switch configOutput {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		case "yaml", "":
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			if used := mgr.ConfigFileUsed(); used != "" {
				fmt.Fprintf(out, "# from %s\n", used)
			}
			_, err = out.Write(data)
			return err
		}
		return fmt.Errorf("unknown output format %q (want yaml or json)", configOutput)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		} else {
			dir, err := os.UserConfigDir()
			if err != nil {
				return err
			}
			path = filepath.Join(dir, "scrawl", "scrawl.yaml")
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every configuration key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, k := range config.Keys() {
			fmt.Fprintf(out, "%s\tSCRAWL_%s\n", k, strings.ToUpper(strings.ReplaceAll(k, ".", "_")))
		}
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show cached copies of remote dictionary files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		store, err := env.cacheStore()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, store.Dir())
		for _, src := range env.dictionarySources() {
			entry, ok := store.Lookup(src)
			if !ok {
				fmt.Fprintf(out, "%s\tnot cached\n", src)
				continue
			}
			fmt.Fprintf(out, "%s\t%d bytes\t%s\n", src, entry.Size, entry.StoredAt.Format(time.RFC3339))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached dictionary files so the next run fetches them again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		store, err := env.cacheStore()
		if err != nil {
			return err
		}
		cleared := 0
		for _, src := range env.dictionarySources() {
			if _, ok := store.Lookup(src); !ok {
				continue
			}
			if err := store.Clear(src); err != nil {
				return fmt.Errorf("clear %s: %w", src, err)
			}
			cleared++
		}
		env.log.Info("dictionary cache cleared", "dir", store.Dir(), "entries", cleared)
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d cached files\n", cleared)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scrawl %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	correctCmd.Flags().BoolVar(&correctReport, "report", false, "list unrecognized tokens and suggestions instead")

	highlightCmd.Flags().StringVarP(&highlightQuery, "query", "q", "", "text to search for")
	highlightCmd.Flags().StringVar(&highlightOpen, "open", highlight.MarkOpen, "marker inserted before each match")
	highlightCmd.Flags().StringVar(&highlightClose, "close", highlight.MarkClose, "marker inserted after each match")
	highlightCmd.Flags().BoolVar(&highlightANSI, "ansi", false, "highlight with terminal colors instead of markers")
	highlightCmd.Flags().BoolVar(&highlightCorrected, "corrected", false, "search the spell-corrected text")
	highlightCmd.MarkFlagRequired("query")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "txt", "export format: txt or pdf")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "", "output directory (default from config)")
	exportCmd.Flags().StringVar(&exportName, "name", "", "file name without extension (default converted-notes)")
	exportCmd.Flags().BoolVar(&exportRaw, "raw", false, "export the text without spelling correction")

	ocrCmd.Flags().BoolVar(&ocrCorrect, "correct", false, "spell-correct the extracted text")
	ocrCmd.Flags().BoolVar(&ocrJSON, "json", false, "print the service response as JSON")

	configCmd.Flags().StringVarP(&configOutput, "output", "o", "yaml", "output format: yaml or json")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configKeysCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(correctCmd, highlightCmd, exportCmd, ocrCmd, configCmd, cacheCmd, versionCmd)
}

// readText resolves the command's input and produces its raw text.
func readText(ctx context.Context, env *env, args []string) (string, error) {
	in, err := resolveInput(args)
	if err != nil {
		return "", err
	}
	return env.fetch(in)(ctx)
}

// dictionaryOrNil loads the dictionary, or returns nil so correction
// passes text through when it is unavailable.
func (e *env) dictionaryOrNil(ctx context.Context) *dict.Dictionary {
	d, err := e.loadDictionary(ctx)
	if err != nil {
		e.log.Warn("dictionary unavailable, text left uncorrected", "err", err)
		return nil
	}
	return d
}

// renderSpans styles the matching spans and joins them back together.
func renderSpans(spans []highlight.Span, match lipgloss.Style) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Match {
			b.WriteString(match.Render(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
