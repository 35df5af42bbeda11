package lexer

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultScanTimeout bounds a single call into a grammar script.
const DefaultScanTimeout = 50 * time.Millisecond

// Script is a Lexer whose scan function is written in Lua.
//
// The script must define a global function
//
//	function scan(line, state) return tokens, state end
//
// state is a table {mode=int, braces=int, stack={{mode=int, braces=int}, ...}}
// with the stack listed bottom first; returning only a mode field is enough
// for single-frame grammars. tokens is an array of {kind="keyword", s=0, e=3}
// tables using 0-based, end-exclusive byte columns. An optional global
// "language" string names the grammar.
//
// gopher-lua states are not goroutine-safe, so calls are serialized.
type Script struct {
	mu       sync.Mutex
	L        *lua.LState
	scanFn   lua.LValue
	language string
	timeout  time.Duration
	closed   bool
}

// ScriptOption configures a Script.
type ScriptOption func(*Script)

// WithScanTimeout sets the per-line timeout for the scan function.
func WithScanTimeout(d time.Duration) ScriptOption {
	return func(s *Script) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScript compiles a grammar script.
func NewScript(language, source string, opts ...ScriptOption) (*Script, error) {
	s := &Script{
		language: language,
		timeout:  DefaultScanTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	if err := doWithRecovery(func() error { return L.DoString(source) }); err != nil {
		L.Close()
		return nil, fmt.Errorf("loading grammar %s: %w", language, err)
	}

	fn := L.GetGlobal("scan")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("grammar %s: %w", language, ErrNoScanFunction)
	}
	if name, ok := L.GetGlobal("language").(lua.LString); ok && name != "" {
		s.language = string(name)
	}

	s.L = L
	s.scanFn = fn
	return s, nil
}

// LoadScript reads and compiles a grammar script from disk. The language
// name defaults to the file name without extension.
func LoadScript(path string, opts ...ScriptOption) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grammar %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewScript(name, string(data), opts...)
}

// openSafeLibraries opens only the side-effect free standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Language implements Lexer.
func (s *Script) Language() string {
	return s.language
}

// Scan implements Lexer. Script errors, timeouts and malformed return
// values degrade to an error token covering the line.
func (s *Script) Scan(line string, start State) ([]Token, State) {
	tokens, end, _ := s.TryScan(line, start)
	return tokens, end
}

// TryScan implements FallibleLexer. A scan cut short by the timeout yields
// an error token, the start state and ok == false.
func (s *Script) TryScan(line string, start State) ([]Token, State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errorLine(line), start, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	top := s.L.GetTop()
	err := doWithRecovery(func() error {
		return s.L.CallByParam(lua.P{Fn: s.scanFn, NRet: 2, Protect: true},
			lua.LString(line), stateToTable(s.L, start))
	})
	if err != nil {
		s.L.SetTop(top)
		return errorLine(line), start, ctx.Err() == nil
	}

	rawTokens := s.L.Get(-2)
	rawState := s.L.Get(-1)
	s.L.SetTop(top)

	next, ok := tableToState(rawState)
	if !ok {
		next = start
	}
	return tableToTokens(rawTokens, len(line)), next, true
}

// Close releases the Lua state. Scan returns error tokens afterwards.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.L.Close()
	return nil
}

func stateToTable(L *lua.LState, st State) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("mode", lua.LNumber(st.Mode()))
	t.RawSetString("braces", lua.LNumber(st.Braces()))

	stack := L.NewTable()
	for i, f := range st.Frames() {
		frame := L.NewTable()
		frame.RawSetString("mode", lua.LNumber(f.Mode))
		frame.RawSetString("braces", lua.LNumber(f.Braces))
		stack.RawSetInt(i+1, frame)
	}
	t.RawSetString("stack", stack)
	return t
}

func tableToState(v lua.LValue) (State, bool) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return State{}, false
	}

	if stack, ok := t.RawGetString("stack").(*lua.LTable); ok && stack.Len() > 0 {
		frames := make([]Frame, 0, stack.Len())
		for i := 1; i <= stack.Len() && i <= MaxDepth; i++ {
			ft, ok := stack.RawGetInt(i).(*lua.LTable)
			if !ok {
				return State{}, false
			}
			f, ok := tableToFrame(ft)
			if !ok {
				return State{}, false
			}
			frames = append(frames, f)
		}
		return NewState(frames...), true
	}

	if _, ok := t.RawGetString("mode").(lua.LNumber); !ok {
		return State{}, false
	}
	f, ok := tableToFrame(t)
	if !ok {
		return State{}, false
	}
	return NewState(f), true
}

func tableToFrame(t *lua.LTable) (Frame, bool) {
	mode, ok := luaUint(t.RawGetString("mode"), math.MaxUint8)
	if !ok {
		return Frame{}, false
	}
	braces, ok := luaUint(t.RawGetString("braces"), math.MaxUint16)
	if !ok {
		return Frame{}, false
	}
	return Frame{Mode: Mode(mode), Braces: uint16(braces)}, true
}

// luaUint converts a script-supplied number to an integer in [0, limit].
// A missing value is 0. Negative, fractional, NaN and too large values
// are rejected.
func luaUint(v lua.LValue, limit uint64) (uint64, bool) {
	if v == lua.LNil {
		return 0, true
	}
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, false
	}
	f := float64(n)
	if !(f >= 0 && f <= float64(limit)) || f != math.Trunc(f) {
		return 0, false
	}
	return uint64(f), true
}

// tableToTokens converts the returned token array, dropping entries that
// are out of order or outside the line.
func tableToTokens(v lua.LValue, lineLen int) []Token {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}

	tokens := make([]Token, 0, t.Len())
	prevEnd := 0
	for i := 1; i <= t.Len(); i++ {
		tt, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		s, ok := luaUint(tt.RawGetString("s"), math.MaxInt32)
		if !ok {
			continue
		}
		e, ok := luaUint(tt.RawGetString("e"), math.MaxInt32)
		if !ok {
			continue
		}
		start, end := int(s), min(int(e), lineLen)
		if start < prevEnd || start >= end {
			continue
		}

		kind := KindError
		switch k := tt.RawGetString("kind").(type) {
		case lua.LString:
			if named := KindFromString(string(k)); named != KindNone {
				kind = named
			}
		case lua.LNumber:
			if n, ok := luaUint(k, uint64(kindCount-1)); ok && n > 0 {
				kind = Kind(n)
			}
		}

		tokens = append(tokens, Token{Kind: kind, Start: start, End: end})
		prevEnd = end
	}
	return tokens
}
