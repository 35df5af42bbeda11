package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/lexwork/internal/background"
	"github.com/dshills/lexwork/internal/highlight"
	"github.com/dshills/lexwork/internal/lexer"
	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/tracing"
)

// Config is the complete lexwork configuration.
type Config struct {
	Log       LogConfig        `toml:"log" yaml:"log"`
	Parse     ParseConfig      `toml:"parse" yaml:"parse"`
	Classify  ClassifyConfig   `toml:"classify" yaml:"classify"`
	Trace     tracing.Config   `toml:"trace" yaml:"trace"`
	Languages []LanguageConfig `toml:"languages" yaml:"languages"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error or off.
	Level string `toml:"level" yaml:"level"`
	// Path is a log file. Empty logs to stderr.
	Path string `toml:"path" yaml:"path"`
}

// ParseConfig controls the background parse scheduler.
type ParseConfig struct {
	// Debounce is the quiet period after the last edit before a parse.
	Debounce Duration `toml:"debounce" yaml:"debounce"`
	// CacheTTL keeps parse results keyed by document content. Zero disables
	// the cache.
	CacheTTL Duration `toml:"cache_ttl" yaml:"cache_ttl"`
}

// ClassifyConfig controls classification and its presentation.
type ClassifyConfig struct {
	// Theme names a highlight theme.
	Theme string `toml:"theme" yaml:"theme"`
	// ScriptTimeout bounds a scripted grammar's scan of one line.
	ScriptTimeout Duration `toml:"script_timeout" yaml:"script_timeout"`
}

// LanguageConfig registers a scripted grammar.
type LanguageConfig struct {
	Name       string   `toml:"name" yaml:"name"`
	Extensions []string `toml:"extensions" yaml:"extensions"`
	// Script is a Lua file defining scan(line, state). Relative paths are
	// resolved against the config file's directory.
	Script string `toml:"script" yaml:"script"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Parse: ParseConfig{
			Debounce: Duration(background.DefaultDelay),
		},
		Classify: ClassifyConfig{
			Theme:         "default",
			ScriptTimeout: Duration(100 * time.Millisecond),
		},
		Trace: tracing.DefaultConfig(),
	}
}

// Validate checks every setting and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		bad("log.level", "%v", err)
	}
	if c.Parse.Debounce < 0 {
		bad("parse.debounce", "must not be negative")
	}
	if c.Parse.CacheTTL < 0 {
		bad("parse.cache_ttl", "must not be negative")
	}
	if _, ok := highlight.ThemeByName(c.Classify.Theme); !ok {
		bad("classify.theme", "unknown theme %q (have %s)", c.Classify.Theme, strings.Join(highlight.ThemeNames(), ", "))
	}
	if c.Classify.ScriptTimeout < 0 {
		bad("classify.script_timeout", "must not be negative")
	}

	switch c.Trace.Exporter {
	case "", "none", "stdout":
	case "file":
		if c.Trace.Enabled && c.Trace.FilePath == "" {
			bad("trace.file_path", "required for the file exporter")
		}
	default:
		bad("trace.exporter", "unknown exporter %q", c.Trace.Exporter)
	}

	seen := make(map[string]bool)
	for i, lang := range c.Languages {
		field := fmt.Sprintf("languages[%d]", i)
		if lang.Name == "" {
			bad(field+".name", "required")
		} else if seen[lang.Name] {
			bad(field+".name", "duplicate language %q", lang.Name)
		}
		seen[lang.Name] = true
		if lang.Script == "" {
			bad(field+".script", "required")
		}
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() logging.Level {
	lvl, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return lvl
}

// Theme returns the configured theme, or the default theme.
func (c *Config) Theme() *highlight.Theme {
	if t, ok := highlight.ThemeByName(c.Classify.Theme); ok {
		return t
	}
	return highlight.DefaultTheme()
}

// Registry returns the built-in languages plus every configured script.
func (c *Config) Registry() *highlight.Registry {
	reg := highlight.DefaultRegistry()
	var opts []lexer.ScriptOption
	if c.Classify.ScriptTimeout > 0 {
		opts = append(opts, lexer.WithScanTimeout(c.Classify.ScriptTimeout.Std()))
	}
	for _, lang := range c.Languages {
		reg.RegisterScript(lang.Name, lang.Extensions, lang.Script, opts...)
	}
	return reg
}

// Encode writes c in the given format ("toml" or "yaml").
func (c *Config) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "toml":
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		return enc.Encode(c)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
