package cmd

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"avm1dump/internal/avm1dump/log"
	"avm1dump/internal/avm1dump/styles"
	"avm1dump/internal/swf"
	"avm1dump/internal/walk"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Summarize the header and tags of a SWF file",
	Long: `Print the header fields of a SWF file, a histogram of its tags and the
number of action lists, without disassembling them.`,
	Example: `
# Show the summary
avm1dump info movie.swf
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		if lc := log.Setup(debug); lc != nil {
			defer lc.Close()
		}

		fh, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer fh.Close()
		f, err := swf.Read(fh)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		md := infoMarkdown(filepath.Base(args[0]), f)
		if !term.IsTerminal(os.Stdout.Fd()) {
			_, err = io.WriteString(cmd.OutOrStdout(), md)
			return err
		}
		width, _, err := term.GetSize(os.Stdout.Fd())
		if err != nil || width <= 0 {
			width = 80
		}
		out, err := renderMarkdown(md, width)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func renderMarkdown(md string, width int) (string, error) {
	r, err := styles.GetMarkdownRenderer(width)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

type tagCount struct {
	code  swf.TagCode
	count int
}

// countTags counts tags including those nested in sprites, most frequent
// first.
func countTags(tags []swf.Tag) []tagCount {
	counts := map[swf.TagCode]int{}
	var visit func([]swf.Tag)
	visit = func(tags []swf.Tag) {
		for _, t := range tags {
			counts[t.Code()]++
			if s, ok := t.(*swf.DefineSprite); ok {
				visit(s.Tags)
			}
		}
	}
	visit(tags)

	out := make([]tagCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, tagCount{code, n})
	}
	slices.SortFunc(out, func(a, b tagCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.code, b.code)
	})
	return out
}

// infoMarkdown describes f as a markdown document.
func infoMarkdown(name string, f *swf.File) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Version | %d |\n", f.Version)
	fmt.Fprintf(&b, "| Compression | %s |\n", f.Compression)
	fmt.Fprintf(&b, "| File length | %d |\n", f.FileLength)
	fmt.Fprintf(&b, "| Frame size | %gx%g px |\n",
		float64(f.FrameSize.XMax-f.FrameSize.XMin)/20, float64(f.FrameSize.YMax-f.FrameSize.YMin)/20)
	fmt.Fprintf(&b, "| Frame rate | %g |\n", f.FrameRate)
	fmt.Fprintf(&b, "| Frame count | %d |\n", f.FrameCount)

	lists := 0
	for _, s := range walk.Sections(f) {
		lists += len(s.Entries)
	}
	fmt.Fprintf(&b, "| Action lists | %d |\n", lists)

	b.WriteString("\n## Tags\n\n| Tag | Count |\n|---|---|\n")
	for _, tc := range countTags(f.Tags) {
		fmt.Fprintf(&b, "| %s | %d |\n", tc.code, tc.count)
	}
	return b.String()
}
