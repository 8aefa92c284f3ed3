package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// AVM1Dark colors action names white, names teal, numbers pink and
// resolved string literals gold.
var AVM1Dark = styles.Register(chroma.MustNewStyle("avm1-dark", chroma.StyleEntries{
	chroma.Text:       "#FFFFFF",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#6A9955",

	chroma.Keyword:         "#C586C0",
	chroma.KeywordConstant: "#569CD6",
	chroma.Name:            "#FFFFFF",
	chroma.NameBuiltin:     "#7C9C9D",
	chroma.NameVariable:    "#7C9C9D",
	chroma.NameFunction:    "#DCDCAA",

	chroma.LiteralNumber:        "#FF5F87",
	chroma.LiteralNumberFloat:   "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#808080",

	chroma.String: "#EACD53",
}))
