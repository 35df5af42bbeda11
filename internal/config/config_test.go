package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexwork/internal/background"
	"github.com/dshills/lexwork/internal/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, background.DefaultDelay, cfg.Parse.Debounce.Std())
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())
	assert.Equal(t, "default", cfg.Theme().Name)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "lexwork.toml", `
[log]
level = "debug"

[parse]
debounce = "50ms"
cache_ttl = "1m"

[classify]
theme = "mono"

[trace]
enabled = true
exporter = "stdout"

[[languages]]
name = "ini"
extensions = [".ini"]
script = "grammars/ini.lua"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
	assert.Equal(t, 50*time.Millisecond, cfg.Parse.Debounce.Std())
	assert.Equal(t, time.Minute, cfg.Parse.CacheTTL.Std())
	assert.Equal(t, "mono", cfg.Theme().Name)
	assert.True(t, cfg.Trace.Enabled)
	assert.Equal(t, "lexwork", cfg.Trace.ServiceName, "unset keys keep defaults")
	require.Len(t, cfg.Languages, 1)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "grammars", "ini.lua"), cfg.Languages[0].Script)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "lexwork.yml", `
log:
  level: warn
parse:
  debounce: 1s
languages:
  - name: words
    extensions: [".w"]
    script: /abs/words.lua
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, logging.LevelWarn, cfg.LogLevel())
	assert.Equal(t, time.Second, cfg.Parse.Debounce.Std())
	assert.Equal(t, "/abs/words.lua", cfg.Languages[0].Script)
	assert.Equal(t, "default", cfg.Classify.Theme)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = Load(writeFile(t, "lexwork.ini", "x=1"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(writeFile(t, "bad.toml", "[log]\nlevel = \n"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Positive(t, pe.Line)

	_, err = Load(writeFile(t, "unknown.toml", "[parse]\ndelay = \"1s\"\n"))
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "parse.delay")

	_, err = Load(writeFile(t, "unknown.yaml", "parse:\n  delay: 1s\n"))
	require.ErrorAs(t, err, &pe)

	_, err = Load(writeFile(t, "dur.toml", "[parse]\ndebounce = \"soon\"\n"))
	require.ErrorAs(t, err, &pe)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Parse.Debounce = -1
	cfg.Classify.Theme = "neon"
	cfg.Trace.Enabled = true
	cfg.Trace.Exporter = "file"
	cfg.Languages = []LanguageConfig{{Name: "a", Script: "a.lua"}, {Name: "a"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var fields []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ve *ValidationError
		require.True(t, errors.As(e, &ve))
		fields = append(fields, ve.Field)
	}
	assert.Equal(t, []string{
		"log.level",
		"parse.debounce",
		"classify.theme",
		"trace.file_path",
		"languages[1].name",
		"languages[1].script",
	}, fields)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LEXWORK_LOG_LEVEL":      "error",
		"LEXWORK_PARSE_DEBOUNCE": "10ms",
		"LEXWORK_TRACE_ENABLED":  "true",
		"LEXWORK_TRACE_EXPORTER": "STDOUT",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 10*time.Millisecond, cfg.Parse.Debounce.Std())
	assert.True(t, cfg.Trace.Enabled)
	assert.Equal(t, "stdout", cfg.Trace.Exporter)

	env = map[string]string{"LEXWORK_TRACE_ENABLED": "maybe"}
	err := Default().ApplyEnv(lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEXWORK_TRACE_ENABLED")

	require.NoError(t, Default().ApplyEnv(noEnv))
	assert.Contains(t, EnvVars(), "LEXWORK_PARSE_CACHE_TTL")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "lexwork.toml", "[classify]\ntheme = \"mono\"\n")
	t.Setenv("LEXWORK_CLASSIFY_THEME", "default")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Classify.Theme)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Languages = []LanguageConfig{{Name: "words", Extensions: []string{".w"}, Script: "/w.lua"}}

	for _, format := range []string{"toml", "yaml"} {
		var buf bytes.Buffer
		require.NoError(t, cfg.Encode(&buf, format))
		assert.True(t, strings.Contains(buf.String(), "300ms"), format)

		got := Default()
		require.NoError(t, got.Decode(&buf, format, "<buffer>"))
		assert.Equal(t, cfg, got, format)
	}

	assert.ErrorIs(t, cfg.Encode(&bytes.Buffer{}, "ini"), ErrUnsupportedFormat)
}

func TestRegistryIncludesScripts(t *testing.T) {
	cfg := Default()
	cfg.Languages = []LanguageConfig{{Name: "words", Extensions: []string{".w"}, Script: "/w.lua"}}

	reg := cfg.Registry()
	lang, ok := reg.ByExtension(".w")
	require.True(t, ok)
	assert.Equal(t, "words", lang.Name)
	_, ok = reg.ByName("template")
	assert.True(t, ok)
}
