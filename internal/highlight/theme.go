package highlight

import (
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/lexwork/internal/lexer"
)

// Theme maps classification kinds to terminal styles.
type Theme struct {
	// Name is the lookup name of the theme.
	Name string

	// Base is the style of unclassified text and the background.
	Base tcell.Style

	// Status is the style of the viewer's status line.
	Status tcell.Style

	styles map[lexer.Kind]tcell.Style
}

// Style returns the style for kind, falling back to Base.
func (t *Theme) Style(kind lexer.Kind) tcell.Style {
	if s, ok := t.styles[kind]; ok {
		return s
	}
	return t.Base
}

// DefaultTheme returns the default dark theme.
func DefaultTheme() *Theme {
	bg := tcell.NewRGBColor(30, 30, 30)
	base := tcell.StyleDefault.Background(bg).Foreground(tcell.NewRGBColor(212, 212, 212))
	fg := func(r, g, b int32) tcell.Style {
		return base.Foreground(tcell.NewRGBColor(r, g, b))
	}

	comment := fg(106, 153, 85)
	keyword := fg(86, 156, 214)
	str := fg(206, 145, 120)
	variable := fg(156, 220, 254)

	return &Theme{
		Name:   "default",
		Base:   base,
		Status: tcell.StyleDefault.Background(tcell.NewRGBColor(0, 122, 204)).Foreground(tcell.ColorWhite),
		styles: map[lexer.Kind]tcell.Style{
			lexer.KindKeyword:       keyword,
			lexer.KindIdentifier:    base,
			lexer.KindVariable:      variable,
			lexer.KindNumber:        fg(181, 206, 168),
			lexer.KindString:        str,
			lexer.KindStringEscape:  fg(215, 186, 125),
			lexer.KindInterpolation: keyword.Bold(true),
			lexer.KindComment:       comment.Italic(true),
			lexer.KindOperator:      base,
			lexer.KindPunctuation:   base,
			lexer.KindText:          fg(128, 128, 128),
			lexer.KindError:         fg(244, 71, 71).Underline(true),
		},
	}
}

// MonochromeTheme uses attributes only, for terminals without color.
func MonochromeTheme() *Theme {
	base := tcell.StyleDefault
	return &Theme{
		Name:   "mono",
		Base:   base,
		Status: base.Reverse(true),
		styles: map[lexer.Kind]tcell.Style{
			lexer.KindKeyword:       base.Bold(true),
			lexer.KindComment:       base.Dim(true),
			lexer.KindString:        base.Italic(true),
			lexer.KindStringEscape:  base.Italic(true).Bold(true),
			lexer.KindInterpolation: base.Bold(true),
			lexer.KindError:         base.Reverse(true),
		},
	}
}

var themes = map[string]func() *Theme{
	"default": DefaultTheme,
	"mono":    MonochromeTheme,
}

// ThemeByName returns a built-in theme. Lookup is case-insensitive.
func ThemeByName(name string) (*Theme, bool) {
	fn, ok := themes[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// ThemeNames returns the names of the built-in themes, sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
