package config

import (
	"time"
)

// Config is the complete scrawl configuration.
type Config struct {
	Dictionary DictionaryConfig `mapstructure:"dictionary" yaml:"dictionary" json:"dictionary"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Reveal     RevealConfig     `mapstructure:"reveal" yaml:"reveal" json:"reveal"`
	Copy       CopyConfig       `mapstructure:"copy" yaml:"copy" json:"copy"`
	Export     ExportConfig     `mapstructure:"export" yaml:"export" json:"export"`
	PDF        PDFConfig        `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
	Log        LogConfig        `mapstructure:"log" yaml:"log" json:"log"`
}

// DictionaryConfig locates the affix file and word list. Each is a local
// path or an http(s) URL; remote copies are cached under CacheDir.
type DictionaryConfig struct {
	Affix    string `mapstructure:"affix" yaml:"affix" json:"affix"`
	Words    string `mapstructure:"words" yaml:"words" json:"words"`
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir" json:"cache_dir"`
}

// OCRConfig configures the upload client.
type OCRConfig struct {
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Field      string        `mapstructure:"field" yaml:"field" json:"field"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Attempts   uint          `mapstructure:"attempts" yaml:"attempts" json:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" json:"retry_delay"`
}

// RevealConfig sets the typing animation speed.
type RevealConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
}

// CopyConfig sets how long the copied indicator stays on.
type CopyConfig struct {
	ResetAfter time.Duration `mapstructure:"reset_after" yaml:"reset_after" json:"reset_after"`
}

// ExportConfig sets where artifacts are written.
type ExportConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Basename string `mapstructure:"basename" yaml:"basename" json:"basename"`
}

// PDFConfig sets page geometry and typography for PDF export.
type PDFConfig struct {
	PageSize    string  `mapstructure:"page_size" yaml:"page_size" json:"page_size"`
	Orientation string  `mapstructure:"orientation" yaml:"orientation" json:"orientation"`
	Margin      float64 `mapstructure:"margin" yaml:"margin" json:"margin"`
	Font        string  `mapstructure:"font" yaml:"font" json:"font"`
	FontFile    string  `mapstructure:"font_file" yaml:"font_file" json:"font_file"`
	FontSize    float64 `mapstructure:"font_size" yaml:"font_size" json:"font_size"`
	LineHeight  float64 `mapstructure:"line_height" yaml:"line_height" json:"line_height"`
}

// LogConfig selects log verbosity, format and an optional file.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Dictionary: DictionaryConfig{
			Affix: "dictionaries/en_US.aff",
			Words: "dictionaries/en_US.dic",
		},
		OCR: OCRConfig{
			Endpoint:   "http://127.0.0.1:8000/api/upload/",
			Field:      "image",
			Timeout:    60 * time.Second,
			Attempts:   3,
			RetryDelay: time.Second,
		},
		Reveal: RevealConfig{Interval: 20 * time.Millisecond},
		Copy:   CopyConfig{ResetAfter: 2 * time.Second},
		Export: ExportConfig{
			Dir:      ".",
			Basename: "converted-notes",
		},
		PDF: PDFConfig{
			PageSize:    "A4",
			Orientation: "P",
			Margin:      10,
			Font:        "Helvetica",
			FontSize:    12,
			LineHeight:  1.2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// defaults flattens DefaultConfig into viper keys.
func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"dictionary.affix":     d.Dictionary.Affix,
		"dictionary.words":     d.Dictionary.Words,
		"dictionary.cache_dir": d.Dictionary.CacheDir,
		"ocr.endpoint":         d.OCR.Endpoint,
		"ocr.field":            d.OCR.Field,
		"ocr.timeout":          d.OCR.Timeout,
		"ocr.attempts":         d.OCR.Attempts,
		"ocr.retry_delay":      d.OCR.RetryDelay,
		"reveal.interval":      d.Reveal.Interval,
		"copy.reset_after":     d.Copy.ResetAfter,
		"export.dir":           d.Export.Dir,
		"export.basename":      d.Export.Basename,
		"pdf.page_size":        d.PDF.PageSize,
		"pdf.orientation":      d.PDF.Orientation,
		"pdf.margin":           d.PDF.Margin,
		"pdf.font":             d.PDF.Font,
		"pdf.font_file":        d.PDF.FontFile,
		"pdf.font_size":        d.PDF.FontSize,
		"pdf.line_height":      d.PDF.LineHeight,
		"log.level":            d.Log.Level,
		"log.format":           d.Log.Format,
		"log.file":             d.Log.File,
	}
}
