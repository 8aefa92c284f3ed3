// Package colorize adds terminal colors to disassembly trace lines.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Disabled reports whether AVM1DUMP_NO_COLOR is set.
func Disabled() bool {
	return os.Getenv("AVM1DUMP_NO_COLOR") != ""
}

func getLexer() chroma.Lexer {
	for _, name := range []string{"actionscript", "javascript"} {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func getStyle() *chroma.Style {
	_ = AVM1Dark
	for _, name := range []string{"avm1-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// highlight runs chroma over text, returning text unchanged on failure.
func highlight(text string) string {
	lexer := getLexer()
	if lexer == nil {
		return text
	}
	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	// Lexers that ensure a trailing newline would break the line apart.
	tokens := iterator.Tokens()
	if n := len(tokens); n > 0 {
		tokens[n-1].Value = strings.TrimSuffix(tokens[n-1].Value, "\n")
	}
	var buf strings.Builder
	if err := getFormatter().Format(&buf, getStyle(), chroma.Literator(tokens...)); err != nil {
		return text
	}
	return buf.String()
}

// TraceLine colors one rendered trace line. The indent and "N:" index are
// kept out of the lexer so column alignment is unchanged.
func TraceLine(line string) string {
	if Disabled() {
		return line
	}
	trimmed := strings.TrimLeft(line, " ")
	indent := line[:len(line)-len(trimmed)]

	idx, rest, ok := strings.Cut(trimmed, ": ")
	if !ok || !isIndex(idx) {
		// continuation line
		return indent + highlight(trimmed)
	}
	return fmt.Sprintf("%s\033[38;2;79;79;79m%s:\033[0m %s", indent, idx, highlight(rest))
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// StripANSI removes SGR escape sequences.
func StripANSI(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
