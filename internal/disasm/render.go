package disasm

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"avm1dump/internal/avm1"
)

const (
	// BaseIndent is the indent of a top-level action list.
	BaseIndent = 4
	// IndentStep is added for every function body.
	IndentStep = 4
	// continuationIndent offsets the extra DefineFunction2 lines.
	continuationIndent = 6
)

// Line is one rendered trace line. Index is -1 for continuation lines that
// belong to the preceding action.
type Line struct {
	Indent int    `json:"indent"`
	Depth  int    `json:"depth"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

func (l Line) String() string {
	pad := strings.Repeat(" ", l.Indent)
	if l.Index < 0 {
		return pad + strings.Repeat(" ", continuationIndent) + l.Text
	}
	return fmt.Sprintf("%s%d: %s", pad, l.Index, l.Text)
}

// Renderer walks action lists once, in order, producing trace lines.
type Renderer struct {
	// MaxDepth limits function nesting; 0 uses avm1.DefaultMaxDepth.
	MaxDepth int
}

// NewRenderer returns a Renderer with the default nesting limit.
func NewRenderer() *Renderer {
	return &Renderer{MaxDepth: avm1.DefaultMaxDepth}
}

func (r *Renderer) maxDepth() int {
	if r.MaxDepth <= 0 {
		return avm1.DefaultMaxDepth
	}
	return r.MaxDepth
}

// Render disassembles list starting with pool at the given indent. The
// caller's pool is never modified.
func (r *Renderer) Render(list avm1.List, pool Pool, indent int) ([]Line, error) {
	var lines []Line
	if err := r.render(&lines, list, pool.Snapshot(), indent, 0); err != nil {
		return nil, err
	}
	return lines, nil
}

// Disassemble renders a top-level list with an empty pool.
func (r *Renderer) Disassemble(list avm1.List) ([]Line, error) {
	return r.Render(list, nil, BaseIndent)
}

func (r *Renderer) render(out *[]Line, list avm1.List, pool Pool, indent, depth int) error {
	if depth > r.maxDepth() {
		return fmt.Errorf("%w: function bodies nested deeper than %d", ErrNestingLimit, r.maxDepth())
	}
	positions := Resolve(list)
	emit := func(idx int, text string) {
		*out = append(*out, Line{Indent: indent, Depth: depth, Index: idx, Text: text})
	}

	for idx, rec := range list {
		switch a := rec.Action.(type) {
		case *avm1.ConstantPool:
			pool = Pool(a.Strings).Snapshot()
			emit(idx, "ConstantPool")

		case *avm1.Push:
			values := make([]string, 0, len(a.Values))
			for _, v := range a.Values {
				if v.IsPoolRef() {
					s, err := pool.Lookup(int(v.Constant))
					if err != nil {
						return fmt.Errorf("action %d: %w", idx, err)
					}
					v = avm1.StringValue(s)
				}
				values = append(values, v.String())
			}
			emit(idx, "Push ["+strings.Join(values, ", ")+"]")

		case *avm1.If:
			to, err := positions.Target(idx, int(a.Offset))
			if err != nil {
				return err
			}
			emit(idx, fmt.Sprintf("If (to:%d)", to))

		case *avm1.Jump:
			to, err := positions.Target(idx, int(a.Offset))
			if err != nil {
				return err
			}
			emit(idx, fmt.Sprintf("Jump (to:%d)", to))

		case *avm1.DefineFunction:
			emit(idx, fmt.Sprintf("DefineFunction name=%s params=%s", a.Name, quoteList(a.Params)))
			if err := r.render(out, a.Body, pool.Snapshot(), indent+IndentStep, depth+1); err != nil {
				return fmt.Errorf("function %q: %w", a.Name, err)
			}

		case *avm1.DefineFunction2:
			emit(idx, "DefineFunction2")
			params := make([]string, 0, len(a.Params))
			for _, p := range a.Params {
				reg := "-"
				if p.Register != 0 {
					reg = strconv.Itoa(int(p.Register))
				}
				params = append(params, fmt.Sprintf("%s(%s)", p.Name, reg))
			}
			emit(-1, "name="+a.Name)
			emit(-1, "params="+quoteList(params))
			emit(-1, "preloads="+quoteList(a.Preloads()))
			if err := r.render(out, a.Body, pool.Snapshot(), indent+IndentStep, depth+1); err != nil {
				return fmt.Errorf("function %q: %w", a.Name, err)
			}

		case fmt.Stringer:
			emit(idx, a.String())

		default:
			emit(idx, fmt.Sprintf("%s %+v", a.Opcode(), a))
		}
	}
	return nil
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// WriteLines writes lines to w, one per line.
func WriteLines(w io.Writer, lines []Line) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l.String()); err != nil {
			return err
		}
	}
	return nil
}
