package highlight

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/lexwork/internal/lexer"
)

// ErrUnknownLanguage is returned when no language matches a lookup.
var ErrUnknownLanguage = errors.New("unknown language")

// Language describes a registered language.
type Language struct {
	// Name is the language identifier, e.g. "template".
	Name string

	// Extensions are file extensions including the leading dot.
	Extensions []string

	// NewLexer creates a lexer for one document. Lexers that hold
	// resources implement io.Closer.
	NewLexer func() (lexer.Lexer, error)
}

// Registry manages available languages.
type Registry struct {
	mu sync.RWMutex

	byName      map[string]Language
	byExtension map[string]Language
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:      make(map[string]Language),
		byExtension: make(map[string]Language),
	}
}

// DefaultRegistry returns a registry with the built-in languages:
// template, go and lua.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Language{
		Name:       "template",
		Extensions: []string{".php", ".phtml", ".tpl"},
		NewLexer:   func() (lexer.Lexer, error) { return lexer.NewTemplate(), nil },
	})
	r.Register(Language{
		Name:       "go",
		Extensions: []string{".go"},
		NewLexer:   func() (lexer.Lexer, error) { return lexer.GoRules(), nil },
	})
	r.Register(Language{
		Name:       "lua",
		Extensions: []string{".lua"},
		NewLexer:   func() (lexer.Lexer, error) { return lexer.LuaRules(), nil },
	})
	return r
}

// Register adds or replaces a language.
func (r *Registry) Register(lang Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byName[lang.Name]; ok {
		for _, ext := range old.Extensions {
			if r.byExtension[normalizeExt(ext)].Name == old.Name {
				delete(r.byExtension, normalizeExt(ext))
			}
		}
	}
	r.byName[lang.Name] = lang
	for _, ext := range lang.Extensions {
		r.byExtension[normalizeExt(ext)] = lang
	}
}

// RegisterScript registers a language whose lexer is the Lua grammar at
// path. Each document gets its own script instance.
func (r *Registry) RegisterScript(name string, extensions []string, path string, opts ...lexer.ScriptOption) {
	r.Register(Language{
		Name:       name,
		Extensions: extensions,
		NewLexer: func() (lexer.Lexer, error) {
			s, err := lexer.LoadScript(path, opts...)
			if err != nil {
				return nil, fmt.Errorf("language %s: %w", name, err)
			}
			return s, nil
		},
	})
}

// ByName returns the language with the given name.
func (r *Registry) ByName(name string) (Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byName[name]
	return l, ok
}

// ByExtension returns the language for a file extension, with or
// without the leading dot.
func (r *Registry) ByExtension(ext string) (Language, bool) {
	if ext == "" {
		return Language{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byExtension[normalizeExt(ext)]
	return l, ok
}

// Resolve picks a language by explicit name first, then by the extension
// of path.
func (r *Registry) Resolve(name, path string) (Language, error) {
	if name != "" {
		if l, ok := r.ByName(name); ok {
			return l, nil
		}
	}
	if l, ok := r.ByExtension(filepath.Ext(path)); ok {
		return l, nil
	}
	return Language{}, fmt.Errorf("%w: name %q path %q", ErrUnknownLanguage, name, path)
}

// Languages returns all registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
