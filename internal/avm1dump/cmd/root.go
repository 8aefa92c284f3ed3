package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"avm1dump/internal/avm1"
	"avm1dump/internal/avm1dump/log"
	"avm1dump/internal/swf"
	"avm1dump/internal/ui/colorize"
	"avm1dump/internal/walk"
)

var rootCmd = &cobra.Command{
	Use:   "avm1dump [file]",
	Short: "Disassemble the AVM1 bytecode of a SWF file",
	Long: `avm1dump prints every ActionScript 1/2 action list of a SWF file:
frame scripts of the main timeline, sprite timelines, init actions and
button condition actions. Branch offsets are resolved to instruction
indices and constant pool references to their strings.`,
	Example: `
# Print the trace
avm1dump movie.swf

# JSON output for diffing
avm1dump -j movie.swf > movie.json

# Browse traces interactively
avm1dump -t movie.swf
  `,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if lc := log.Setup(cfg.Debug); lc != nil {
			defer lc.Close()
		}

		cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		if cfg.TUI {
			return runTUI(cmd.Context(), args[0], cfg)
		}
		color := !cfg.NoColor && !colorize.Disabled() && term.IsTerminal(os.Stdout.Fd())
		return runDump(cmd.OutOrStdout(), args[0], cfg, color)
	},
}

func init() {
	addFlags(rootCmd)
}

func addFlags(c *cobra.Command) {
	c.PersistentFlags().BoolP("debug", "d", false, "Debug")
	c.PersistentFlags().String("config", "", "Path to a JSON config file")

	c.Flags().BoolP("help", "h", false, "Help")
	c.Flags().BoolP("json", "j", false, "Output traces as JSON")
	c.Flags().BoolP("tui", "t", false, "Browse traces in an interactive viewer")
	c.Flags().Bool("no-color", false, "Disable colored output")
	c.Flags().Int("max-depth", avm1.DefaultMaxDepth, "Maximum nesting of function bodies")
	c.Flags().String("cpuprofile", "", "Write CPU profile to file")
}

// disassemble reads and walks the file at path.
func disassemble(path string, maxDepth int) (*swf.File, *walk.Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer fh.Close()

	f, err := swf.Read(fh)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	slog.Debug("Read SWF", "file", path, "version", f.Version, "compression", f.Compression, "tags", len(f.Tags))

	res, err := walk.New(maxDepth).Run(f)
	if err != nil {
		return f, nil, err
	}
	slog.Debug("Disassembled", "sections", len(res.Sections), "lines", res.LineCount())
	return f, res, nil
}

// runDump writes the trace of path to w. Nothing is written unless the whole
// file disassembles.
func runDump(w io.Writer, path string, cfg Config, color bool) error {
	_, res, err := disassemble(path, cfg.MaxDepth)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch {
	case cfg.JSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		err = enc.Encode(res)
	case color:
		err = writeColored(&buf, res)
	default:
		err = res.WriteText(&buf)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	entryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
)

// writeColored is WriteText with styled headers and highlighted lines.
func writeColored(w io.Writer, res *walk.Result) error {
	for _, s := range res.Sections {
		if _, err := fmt.Fprintln(w, sectionStyle.Render(s.Label)); err != nil {
			return err
		}
		for _, e := range s.Entries {
			if _, err := fmt.Fprintf(w, "  %s\n", entryStyle.Render(e.Label)); err != nil {
				return err
			}
			for _, l := range e.Lines {
				if _, err := fmt.Fprintln(w, colorize.TraceLine(l.String())); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Execute runs the root command. fang is used only on an interactive
// terminal so piped output stays plain.
func Execute() {
	plain := !term.IsTerminal(os.Stdout.Fd())
	for _, arg := range os.Args[1:] {
		if arg == "--json" || arg == "-j" {
			plain = true
			break
		}
	}

	if plain {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
