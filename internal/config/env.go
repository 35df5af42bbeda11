package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEXWORK_"

// envSetting maps one variable (without prefix) onto a field.
type envSetting struct {
	name string
	set  func(c *Config, v string) error
}

var envSettings = []envSetting{
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"LOG_PATH", func(c *Config, v string) error { c.Log.Path = v; return nil }},
	{"PARSE_DEBOUNCE", func(c *Config, v string) error { return c.Parse.Debounce.UnmarshalText([]byte(v)) }},
	{"PARSE_CACHE_TTL", func(c *Config, v string) error { return c.Parse.CacheTTL.UnmarshalText([]byte(v)) }},
	{"CLASSIFY_THEME", func(c *Config, v string) error { c.Classify.Theme = v; return nil }},
	{"CLASSIFY_SCRIPT_TIMEOUT", func(c *Config, v string) error {
		return c.Classify.ScriptTimeout.UnmarshalText([]byte(v))
	}},
	{"TRACE_ENABLED", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Trace.Enabled = b
		return nil
	}},
	{"TRACE_EXPORTER", func(c *Config, v string) error { c.Trace.Exporter = strings.ToLower(v); return nil }},
	{"TRACE_FILE_PATH", func(c *Config, v string) error { c.Trace.FilePath = v; return nil }},
}

// EnvVars returns the names of every recognised environment variable.
func EnvVars() []string {
	out := make([]string, len(envSettings))
	for i, s := range envSettings {
		out[i] = EnvPrefix + s.name
	}
	return out
}

// ApplyEnv overlays environment variables found by lookup onto c.
// Empty values are treated as set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, s := range envSettings {
		name := EnvPrefix + s.name
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := s.set(c, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
