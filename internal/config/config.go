// Package config loads scrawl's configuration from defaults, an optional
// YAML file and SCRAWL_* environment variables, and reloads it when the
// file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SCRAWL_OCR_ENDPOINT.
const EnvPrefix = "SCRAWL"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	errs      []func(error)
}

// NewManager creates a new config manager and loads initial config. An
// empty cfgFile searches ./scrawl.yaml and $XDG_CONFIG_HOME/scrawl; a
// missing file there is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	keys := defaults()
	for k, v := range keys {
		cm.v.SetDefault(k, v)
	}

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("scrawl")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			cm.v.AddConfigPath(filepath.Join(dir, "scrawl"))
		}
	}

	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Set overrides a single key, as command-line flags do, and reloads.
func (cm *Manager) Set(key string, value any) error {
	cm.v.Set(key, value)
	cfg, err := cm.load()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return nil
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// OnError registers a callback for reloads that fail. The previous
// configuration stays in effect.
func (cm *Manager) OnError(fn func(error)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.errs = append(cm.errs, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()

		cm.mu.Lock()
		if err == nil {
			cm.config = cfg
		}
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		errs := make([]func(error), len(cm.errs))
		copy(errs, cm.errs)
		cm.mu.Unlock()

		if err != nil {
			for _, fn := range errs {
				fn(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}
	switch strings.ToUpper(c.PDF.Orientation) {
	case "P", "L", "PORTRAIT", "LANDSCAPE":
	default:
		problems = append(problems, fmt.Sprintf("pdf.orientation %q is not P or L", c.PDF.Orientation))
	}
	if c.PDF.FontSize <= 0 {
		problems = append(problems, "pdf.font_size must be positive")
	}
	if c.PDF.Margin < 0 {
		problems = append(problems, "pdf.margin must not be negative")
	}
	if c.Reveal.Interval <= 0 {
		problems = append(problems, "reveal.interval must be positive")
	}
	if c.OCR.Attempts == 0 {
		problems = append(problems, "ocr.attempts must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Keys lists every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for k := range defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# scrawl configuration
# Every key can be overridden with an environment variable, e.g.
# SCRAWL_OCR_ENDPOINT=http://localhost:8000/api/upload/

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(path, append(header, data...), 0o644)
}

// YAML renders cfg as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
